// Package ipv6 provides in-place views and mutation over raw IPv6 packets
// held in caller-owned, fixed-capacity buffers. It implements the subset of
// RFC 8200 needed by the coordinate stamping path: fixed-header field
// access, Hop-by-Hop header presence/prepend, TLV option iteration and
// append, and length finalization.
//
// A Packet handle is not safe for concurrent mutation; confine each packet
// to one worker at a time.
package ipv6

import (
	"encoding/binary"
	"net/netip"
	"sync"

	"geomesh.io/hyperbr/internal/core"
)

const (
	// HeaderLen is the fixed IPv6 header size.
	HeaderLen = 40

	// Next-header protocol numbers used by the walker.
	ProtoHopByHop = 0
	ProtoTCP      = 6
	ProtoUDP      = 17
	ProtoICMPv6   = 58
	ProtoNoNext   = 59
)

// Packet is an exclusively-owned handle over a fixed-capacity byte buffer
// holding one IPv6 packet. The buffer never grows; mutations that would
// exceed capacity fail with core.ErrBufferFull.
type Packet struct {
	data []byte
	n    int
}

// NewPacket allocates a packet handle with the given buffer capacity.
func NewPacket(capacity int) *Packet {
	if capacity < HeaderLen {
		capacity = HeaderLen
	}
	return &Packet{data: make([]byte, capacity)}
}

// Load copies raw into the buffer and sets the current length.
func (p *Packet) Load(raw []byte) error {
	if len(raw) > len(p.data) {
		return core.ErrBufferFull
	}
	copy(p.data, raw)
	p.n = len(raw)
	return nil
}

// Bytes returns the current packet contents. The slice aliases the
// internal buffer and is invalidated by any mutating call.
func (p *Packet) Bytes() []byte { return p.data[:p.n] }

// Len returns the current packet length in octets.
func (p *Packet) Len() int { return p.n }

// Cap returns the buffer capacity in octets.
func (p *Packet) Cap() int { return len(p.data) }

// Reset empties the packet without releasing the buffer.
func (p *Packet) Reset() { p.n = 0 }

// check validates that the buffer holds at least a fixed IPv6 header.
func (p *Packet) check() error {
	if p.n < HeaderLen {
		return core.ErrPacketTooShort
	}
	if p.data[0]>>4 != 6 {
		return core.ErrNotIPv6
	}
	return nil
}

// Version returns the IP version nibble.
func (p *Packet) Version() uint8 { return p.data[0] >> 4 }

// NextHeader returns the fixed header's Next Header octet.
func (p *Packet) NextHeader() uint8 { return p.data[6] }

func (p *Packet) setNextHeader(v uint8) { p.data[6] = v }

// PayloadLength returns the fixed header's Payload Length field.
func (p *Packet) PayloadLength() uint16 {
	return binary.BigEndian.Uint16(p.data[4:6])
}

// HopLimit returns the fixed header's Hop Limit octet.
func (p *Packet) HopLimit() uint8 { return p.data[7] }

// SrcAddr returns the source address.
func (p *Packet) SrcAddr() netip.Addr {
	var a [16]byte
	copy(a[:], p.data[8:24])
	return netip.AddrFrom16(a)
}

// DstAddr returns the destination address.
func (p *Packet) DstAddr() netip.Addr {
	var a [16]byte
	copy(a[:], p.data[24:40])
	return netip.AddrFrom16(a)
}

// Finalize recomputes the fixed-header Payload Length from the current
// packet length. Call it after all header mutation, before handing the
// buffer to the network layer. Idempotent on an unmodified buffer.
func (p *Packet) Finalize() error {
	if err := p.check(); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(p.data[4:6], uint16(p.n-HeaderLen))
	return nil
}

// PacketPool recycles packet handles of a fixed capacity.
type PacketPool struct {
	pool sync.Pool
}

// NewPacketPool creates a pool whose handles carry capacity-octet buffers.
func NewPacketPool(capacity int) *PacketPool {
	pp := &PacketPool{}
	pp.pool.New = func() any { return NewPacket(capacity) }
	return pp
}

// Acquire returns an empty packet handle, exclusively owned by the caller.
func (pp *PacketPool) Acquire() *Packet {
	p := pp.pool.Get().(*Packet)
	p.Reset()
	return p
}

// Release returns p to the pool. A nil p is a no-op. The handle must not
// be used, nor released again, after this call.
func (pp *PacketPool) Release(p *Packet) {
	if p == nil {
		return
	}
	pp.pool.Put(p)
}
