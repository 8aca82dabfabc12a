package ipv6

import (
	"geomesh.io/hyperbr/internal/core"
)

// Option is a view of one TLV entry. The offset addresses the type octet.
type Option struct {
	p   *Packet
	off int
}

// Type returns the option type octet.
func (o Option) Type() uint8 { return o.p.data[o.off] }

// DataLen returns the option's content length in octets.
func (o Option) DataLen() int { return int(o.p.data[o.off+1]) }

// DataOffset returns the buffer offset of the option content.
func (o Option) DataOffset() int { return o.off + 2 }

// Data returns the option content. The slice aliases the packet buffer
// and is invalidated by any mutating header operation.
func (o Option) Data() []byte {
	return o.p.data[o.off+2 : o.off+2+o.DataLen()]
}

// OptionIter walks the non-padding TLV entries of a Hop-by-Hop header.
type OptionIter struct {
	h   HopByHop
	pos int
	end int
	err error
}

// Options returns an iterator positioned before the first option. A
// header whose declared length extends past the packet yields an
// iterator that reports core.ErrMalformedOption without reading the
// bytes beyond the packet.
func (h HopByHop) Options() *OptionIter {
	it := &OptionIter{h: h, pos: h.off + 2, end: h.off + h.Len()}
	if it.end > h.p.n {
		it.err = core.ErrMalformedOption
	}
	return it
}

// Next returns the next non-padding option. A malformed TLV terminates
// iteration with Err set instead of reading past the header boundary.
func (it *OptionIter) Next() (Option, bool) {
	if it.err != nil {
		return Option{}, false
	}
	data := it.h.p.data
	for it.pos < it.end {
		t := data[it.pos]
		if t == OptPad1 {
			it.pos++
			continue
		}
		if it.pos+1 >= it.end {
			it.err = core.ErrMalformedOption
			return Option{}, false
		}
		dl := int(data[it.pos+1])
		if it.pos+2+dl > it.end {
			it.err = core.ErrMalformedOption
			return Option{}, false
		}
		opt := Option{p: it.h.p, off: it.pos}
		it.pos += 2 + dl
		if t == OptPadN {
			continue
		}
		return opt, true
	}
	return Option{}, false
}

// Err reports a malformed TLV encountered during iteration.
func (it *OptionIter) Err() error { return it.err }

// Align expresses the RFC 8200 xn+y option alignment requirement: the
// option type octet must sit Off octets past a multiple of Mult, measured
// from the start of the extension header.
type Align struct {
	Mult int
	Off  int
}

// AppendOption inserts a TLV entry after the existing options, padding
// first so the type octet satisfies align, then re-padding the header to
// the 8-octet boundary and recomputing the Hdr Ext Len octet. Payload
// bytes after the header are shifted as needed.
//
// The buffer is well formed again when the call returns, but any Option
// views captured before it are invalid; re-resolve via Options().
func (h HopByHop) AppendOption(typ uint8, data []byte, align Align) error {
	if len(data) > 255 {
		return core.ErrOptionTooLong
	}
	p := h.p
	hlen := h.Len()
	hdrEnd := h.off + hlen
	end, err := h.dataEnd()
	if err != nil {
		return err
	}

	pad := 0
	if align.Mult > 1 {
		pad = ((align.Off-(end-h.off))%align.Mult + align.Mult) % align.Mult
	}
	newDataEnd := end + pad + 2 + len(data)
	newLen := roundUp8(newDataEnd - h.off)
	if newLen/8 > 256 {
		return core.ErrBufferFull
	}
	delta := newLen - hlen
	if p.n+delta > len(p.data) {
		return core.ErrBufferFull
	}

	// Relocate the payload that follows the header, then write the
	// alignment padding, the TLV, and fresh tail padding.
	copy(p.data[h.off+newLen:p.n+delta], p.data[hdrEnd:p.n])
	writePad(p.data[end : end+pad])
	p.data[end+pad] = typ
	p.data[end+pad+1] = byte(len(data))
	copy(p.data[end+pad+2:newDataEnd], data)
	writePad(p.data[newDataEnd : h.off+newLen])
	p.data[h.off+1] = uint8(newLen/8 - 1)
	p.n += delta
	return nil
}

// Finalize rewrites the trailing padding and validates the TLV chain.
// Mutating calls already leave the header finalized, so a repeated call
// on an unmodified buffer changes nothing.
func (h HopByHop) Finalize() error {
	end, err := h.dataEnd()
	if err != nil {
		return err
	}
	writePad(h.p.data[end : h.off+h.Len()])
	return nil
}
