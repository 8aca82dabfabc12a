package ipv6

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"geomesh.io/hyperbr/internal/core"
)

// buildMinimal returns a minimal IPv6 packet: fixed header plus an
// 8-octet UDP header as payload.
func buildMinimal() []byte {
	data := make([]byte, HeaderLen+8)
	data[0] = 0x60 // version 6
	data[4], data[5] = 0x00, 0x08
	data[6] = ProtoUDP
	data[7] = 64 // hop limit
	copy(data[8:24], netip.MustParseAddr("fd00::1").AsSlice())
	copy(data[24:40], netip.MustParseAddr("fd00::2").AsSlice())
	// UDP: src 9000, dst 9001, length 8, checksum 0
	data[40], data[41] = 0x23, 0x28
	data[42], data[43] = 0x23, 0x29
	data[44], data[45] = 0x00, 0x08
	return data
}

func loadPacket(t *testing.T, capacity int) *Packet {
	t.Helper()
	p := NewPacket(capacity)
	if err := p.Load(buildMinimal()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return p
}

func TestFixedHeaderFields(t *testing.T) {
	p := loadPacket(t, 256)

	if p.Version() != 6 {
		t.Errorf("expected version 6, got %d", p.Version())
	}
	if p.NextHeader() != ProtoUDP {
		t.Errorf("expected next header %d, got %d", ProtoUDP, p.NextHeader())
	}
	if p.PayloadLength() != 8 {
		t.Errorf("expected payload length 8, got %d", p.PayloadLength())
	}
	if p.HopLimit() != 64 {
		t.Errorf("expected hop limit 64, got %d", p.HopLimit())
	}
	if want := netip.MustParseAddr("fd00::1"); p.SrcAddr() != want {
		t.Errorf("expected src %v, got %v", want, p.SrcAddr())
	}
	if want := netip.MustParseAddr("fd00::2"); p.DstAddr() != want {
		t.Errorf("expected dst %v, got %v", want, p.DstAddr())
	}
}

func TestLoadOverCapacity(t *testing.T) {
	p := NewPacket(HeaderLen)
	if err := p.Load(buildMinimal()); !errors.Is(err, core.ErrBufferFull) {
		t.Errorf("expected ErrBufferFull, got %v", err)
	}
}

func TestEnsureHopByHopPrepends(t *testing.T) {
	p := loadPacket(t, 256)
	payload := append([]byte(nil), p.Bytes()[HeaderLen:]...)

	h, err := p.EnsureHopByHop()
	if err != nil {
		t.Fatalf("EnsureHopByHop failed: %v", err)
	}

	if p.Len() != HeaderLen+8+8 {
		t.Errorf("expected length %d, got %d", HeaderLen+16, p.Len())
	}
	if p.NextHeader() != ProtoHopByHop {
		t.Errorf("expected fixed next header %d, got %d", ProtoHopByHop, p.NextHeader())
	}
	if h.NextHeader() != ProtoUDP {
		t.Errorf("expected chained next header %d, got %d", ProtoUDP, h.NextHeader())
	}
	if h.Len() != 8 {
		t.Errorf("expected header length 8, got %d", h.Len())
	}
	// Original payload must have shifted up intact.
	if !bytes.Equal(p.Bytes()[HeaderLen+8:], payload) {
		t.Errorf("payload corrupted by prepend")
	}
}

func TestEnsureHopByHopIdempotent(t *testing.T) {
	p := loadPacket(t, 256)
	if _, err := p.EnsureHopByHop(); err != nil {
		t.Fatalf("first EnsureHopByHop failed: %v", err)
	}
	n := p.Len()
	if _, err := p.EnsureHopByHop(); err != nil {
		t.Fatalf("second EnsureHopByHop failed: %v", err)
	}
	if p.Len() != n {
		t.Errorf("expected length %d after redundant ensure, got %d", n, p.Len())
	}
}

func TestEnsureHopByHopCapacity(t *testing.T) {
	p := NewPacket(HeaderLen + 8)
	if err := p.Load(buildMinimal()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := p.EnsureHopByHop(); !errors.Is(err, core.ErrBufferFull) {
		t.Errorf("expected ErrBufferFull, got %v", err)
	}
}

func TestEnsureHopByHopRejectsNonIPv6(t *testing.T) {
	p := NewPacket(256)
	raw := buildMinimal()
	raw[0] = 0x45
	if err := p.Load(raw); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := p.EnsureHopByHop(); !errors.Is(err, core.ErrNotIPv6) {
		t.Errorf("expected ErrNotIPv6, got %v", err)
	}
}

func TestFinalizeRecomputesPayloadLength(t *testing.T) {
	p := loadPacket(t, 256)
	if _, err := p.EnsureHopByHop(); err != nil {
		t.Fatalf("EnsureHopByHop failed: %v", err)
	}
	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if want := uint16(p.Len() - HeaderLen); p.PayloadLength() != want {
		t.Errorf("expected payload length %d, got %d", want, p.PayloadLength())
	}
	// A second Finalize on the unmodified buffer changes nothing.
	before := append([]byte(nil), p.Bytes()...)
	if err := p.Finalize(); err != nil {
		t.Fatalf("repeated Finalize failed: %v", err)
	}
	if !bytes.Equal(before, p.Bytes()) {
		t.Errorf("repeated Finalize mutated the buffer")
	}
}

func TestPacketPool(t *testing.T) {
	pool := NewPacketPool(128)

	p := pool.Acquire()
	if p == nil {
		t.Fatal("Acquire returned nil")
	}
	if p.Len() != 0 {
		t.Errorf("expected empty packet, got length %d", p.Len())
	}
	if p.Cap() != 128 {
		t.Errorf("expected capacity 128, got %d", p.Cap())
	}
	pool.Release(p)

	// Releasing nil is a no-op.
	pool.Release(nil)

	// Reacquired handles come back cleared.
	q := pool.Acquire()
	if q.Len() != 0 {
		t.Errorf("expected reacquired packet empty, got length %d", q.Len())
	}
}
