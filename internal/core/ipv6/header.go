package ipv6

import (
	"geomesh.io/hyperbr/internal/core"
)

// minHopByHopLen is the smallest legal Hop-by-Hop header: Next Header,
// Hdr Ext Len, and six octets of padding.
const minHopByHopLen = 8

// Padding option types per RFC 8200 §4.2.
const (
	OptPad1 = 0x00
	OptPadN = 0x01
)

// HopByHop is a view over a Hop-by-Hop Options header inside a packet
// buffer. Views are cheap to copy; they hold no state beyond the header's
// offset.
type HopByHop struct {
	p   *Packet
	off int
}

// HopByHop returns a view of the first extension header if it is a
// Hop-by-Hop Options header.
func (p *Packet) HopByHop() (HopByHop, bool) {
	if p.check() != nil || p.NextHeader() != ProtoHopByHop {
		return HopByHop{}, false
	}
	if p.n < HeaderLen+minHopByHopLen {
		return HopByHop{}, false
	}
	return HopByHop{p: p, off: HeaderLen}, true
}

// EnsureHopByHop returns the packet's Hop-by-Hop header, prepending a
// minimal empty one ahead of the existing chain when absent. Prepending
// shifts the packet payload up by eight octets.
func (p *Packet) EnsureHopByHop() (HopByHop, error) {
	if err := p.check(); err != nil {
		return HopByHop{}, err
	}
	if h, ok := p.HopByHop(); ok {
		return h, nil
	}
	if p.n+minHopByHopLen > len(p.data) {
		return HopByHop{}, core.ErrBufferFull
	}
	next := p.NextHeader()
	copy(p.data[HeaderLen+minHopByHopLen:p.n+minHopByHopLen], p.data[HeaderLen:p.n])
	hdr := p.data[HeaderLen : HeaderLen+minHopByHopLen]
	hdr[0] = next
	hdr[1] = 0 // Hdr Ext Len: (8/8)-1
	writePad(hdr[2:])
	p.setNextHeader(ProtoHopByHop)
	p.n += minHopByHopLen
	return HopByHop{p: p, off: HeaderLen}, nil
}

// NextHeader returns the header's Next Header octet.
func (h HopByHop) NextHeader() uint8 { return h.p.data[h.off] }

// Len returns the header's declared total octet length, always a
// multiple of 8. The declaration is untrusted; consumers bound it
// against the packet length before reading.
func (h HopByHop) Len() int { return (int(h.p.data[h.off+1]) + 1) * 8 }

// Offset returns the header's offset within the packet buffer.
func (h HopByHop) Offset() int { return h.off }

// dataEnd scans the TLV chain and returns the offset just past the last
// non-padding option. Trailing Pad1/PadN runs are not counted.
func (h HopByHop) dataEnd() (int, error) {
	end := h.off + h.Len()
	if end > h.p.n {
		return 0, core.ErrPacketTooShort
	}
	pos := h.off + 2
	last := pos
	for pos < end {
		if h.p.data[pos] == OptPad1 {
			pos++
			continue
		}
		if pos+1 >= end {
			return 0, core.ErrMalformedOption
		}
		dl := int(h.p.data[pos+1])
		if pos+2+dl > end {
			return 0, core.ErrMalformedOption
		}
		t := h.p.data[pos]
		pos += 2 + dl
		if t != OptPadN {
			last = pos
		}
	}
	return last, nil
}

// writePad fills b with padding options: one Pad1 octet or a PadN TLV.
func writePad(b []byte) {
	switch {
	case len(b) == 0:
	case len(b) == 1:
		b[0] = OptPad1
	default:
		b[0] = OptPadN
		b[1] = byte(len(b) - 2)
		for i := 2; i < len(b); i++ {
			b[i] = 0
		}
	}
}

func roundUp8(n int) int { return (n + 7) &^ 7 }
