package hyperspace

import (
	"encoding/binary"
	"math"

	"geomesh.io/hyperbr/internal/core"
	"geomesh.io/hyperbr/internal/core/ipv6"
)

// Insert ensures the packet carries exactly one coordinate option and
// returns a view of its content together with the packet's new total
// length. A Hop-by-Hop header is prepended when the packet has none. When
// the option already exists, the packet is returned unchanged, so a
// second Insert on the output of the first is a no-op with identical
// length and content.
//
// A freshly inserted record has src = {0, 0}, src_seq = dest_seq = 0,
// dest = {NaN, NaN}, and a packet identifier drawn from ctx.
func Insert(ctx *Context, p *ipv6.Packet) (CoordOption, int, error) {
	h, err := p.EnsureHopByHop()
	if err != nil {
		return CoordOption{}, 0, err
	}
	opt, found, err := findIn(h)
	if err != nil {
		return CoordOption{}, 0, err
	}
	if found {
		return opt, p.Len(), nil
	}

	content := defaultContent(ctx)
	if err := h.AppendOption(OptTypeCoord, content[:], optAlign); err != nil {
		return CoordOption{}, 0, err
	}
	if err := h.Finalize(); err != nil {
		return CoordOption{}, 0, err
	}
	if err := p.Finalize(); err != nil {
		return CoordOption{}, 0, err
	}

	// The append may have relocated buffer bytes; resolve the content
	// view from the current buffer state, never from a pre-append scan.
	opt, found, err = findIn(h)
	if err != nil {
		return CoordOption{}, 0, err
	}
	if !found {
		return CoordOption{}, 0, core.ErrMalformedOption
	}
	return opt, p.Len(), nil
}

// Find looks up the coordinate option without ever appending one. The
// Hop-by-Hop header itself is still ensured, mirroring Insert's header
// step. A miss is reported through found = false; the returned view is
// unusable in that case and Valid() on it reports false.
func Find(p *ipv6.Packet) (CoordOption, bool, error) {
	h, err := p.EnsureHopByHop()
	if err != nil {
		return CoordOption{}, false, err
	}
	return findIn(h)
}

// findIn scans the header's options for the first coordinate option.
func findIn(h ipv6.HopByHop) (CoordOption, bool, error) {
	it := h.Options()
	for {
		opt, ok := it.Next()
		if !ok {
			break
		}
		if opt.Type() != OptTypeCoord {
			continue
		}
		if opt.DataLen() != ContentLen {
			return CoordOption{}, false, core.ErrMalformedOption
		}
		return CoordOption{data: opt.Data()}, true, nil
	}
	return CoordOption{}, false, it.Err()
}

// defaultContent builds the freshly-inserted record.
func defaultContent(ctx *Context) [ContentLen]byte {
	var b [ContentLen]byte
	binary.BigEndian.PutUint16(b[2:4], ctx.nextPacketID())
	nan := math.Float32bits(nan32())
	binary.BigEndian.PutUint32(b[12:16], nan)
	binary.BigEndian.PutUint32(b[16:20], nan)
	return b
}
