// Package hyperspace embeds and retrieves per-packet routing coordinate
// records inside the IPv6 Hop-by-Hop option chain. The record carries the
// origin node's polar coordinate, the last responding hop's coordinate,
// sequence tags for both, and a per-context packet identifier; border
// routers use it to support geometric routing over a coordinate-embedded
// mesh.
package hyperspace

import (
	"encoding/binary"
	"math"

	"geomesh.io/hyperbr/internal/core"
	"geomesh.io/hyperbr/internal/core/ipv6"
)

const (
	// OptTypeCoord is the Hop-by-Hop option type code carrying a
	// coordinate record.
	OptTypeCoord = 0x22

	// ContentLen is the packed size of the coordinate record.
	ContentLen = 20
)

// Packed content layout, network byte order:
//
//	0       src_seq   u8
//	1       dest_seq  u8
//	2  ..3  packet_id u16
//	4  ..7  src.r     f32
//	8  ..11 src.t     f32
//	12 ..15 dest.r    f32  (NaN = unset)
//	16 ..19 dest.t    f32  (NaN = unset)

// optAlign is the RFC 8200 xn+y alignment for the option: 4n+2 keeps the
// four-byte floats naturally aligned behind the two TLV octets.
var optAlign = ipv6.Align{Mult: 4, Off: 2}

// CoordOption is an opaque view over the option content inside a packet
// buffer. Callers read and write fields only through its methods, never
// through the packed layout. A view is invalidated by any mutating
// header operation on the packet; re-resolve it with Find afterwards.
type CoordOption struct {
	data []byte
}

// Valid reports whether the view denotes usable option content.
func (o CoordOption) Valid() bool { return len(o.data) == ContentLen }

// SourceSeq returns the sequence tag of the source coordinate snapshot.
func (o CoordOption) SourceSeq() uint8 { return o.data[0] }

// DestSeq returns the sequence tag set by the last hop to respond.
func (o CoordOption) DestSeq() uint8 { return o.data[1] }

// PacketID returns the per-context packet identifier.
func (o CoordOption) PacketID() uint16 {
	return binary.BigEndian.Uint16(o.data[2:4])
}

// SourceR returns the radial part of the origin coordinate.
func (o CoordOption) SourceR() float32 { return o.f32(4) }

// SourceT returns the angular part of the origin coordinate.
func (o CoordOption) SourceT() float32 { return o.f32(8) }

// DestR returns the radial part of the last-hop coordinate. NaN while unset.
func (o CoordOption) DestR() float32 { return o.f32(12) }

// DestT returns the angular part of the last-hop coordinate. NaN while unset.
func (o CoordOption) DestT() float32 { return o.f32(16) }

// Source returns the origin coordinate.
func (o CoordOption) Source() core.Coord {
	return core.Coord{R: o.SourceR(), T: o.SourceT()}
}

// Destination returns the last-hop coordinate and its sequence tag.
// ok is false while the wire-level NaN sentinel marks the fields unset,
// so callers never compare floats against NaN themselves.
func (o CoordOption) Destination() (c core.Coord, seq uint8, ok bool) {
	r, t := o.DestR(), o.DestT()
	if isNaN32(r) || isNaN32(t) {
		return core.Coord{}, 0, false
	}
	return core.Coord{R: r, T: t}, o.DestSeq(), true
}

// SetSource overwrites the source coordinate and its sequence tag.
// Destination fields and the packet identifier are untouched.
func (o CoordOption) SetSource(r, t float32, seq uint8) {
	o.data[0] = seq
	o.putF32(4, r)
	o.putF32(8, t)
}

// SetDestination overwrites the destination coordinate and its sequence
// tag. Source fields and the packet identifier are untouched.
func (o CoordOption) SetDestination(r, t float32, seq uint8) {
	o.data[1] = seq
	o.putF32(12, r)
	o.putF32(16, t)
}

func (o CoordOption) f32(off int) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(o.data[off : off+4]))
}

func (o CoordOption) putF32(off int, v float32) {
	binary.BigEndian.PutUint32(o.data[off:off+4], math.Float32bits(v))
}

func isNaN32(f float32) bool { return f != f }

// nan32 is the canonical quiet NaN used as the unset sentinel on the wire.
func nan32() float32 { return math.Float32frombits(0x7fc00000) }
