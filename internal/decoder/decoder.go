// Package decoder extracts the IPv6 packet from a raw capture frame.
// File sources hand us Ethernet frames, UDP sources hand us bare IPv6,
// so the first layer is configurable.
package decoder

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"geomesh.io/hyperbr/internal/core"
)

// LinkType selects the outermost layer a Decoder expects.
type LinkType int

const (
	// LinkEthernet frames start with an Ethernet header.
	LinkEthernet LinkType = iota
	// LinkRaw frames are bare IPv6 packets.
	LinkRaw
)

// Decoder strips link framing and returns the IPv6 portion of a frame.
// Not safe for concurrent use; each pipeline worker owns one.
type Decoder struct {
	parser  *gopacket.DecodingLayerParser
	eth     layers.Ethernet
	ip6     layers.IPv6
	decoded []gopacket.LayerType
	raw     bool
}

// New creates a Decoder for frames of the given link type.
func New(link LinkType) *Decoder {
	d := &Decoder{raw: link == LinkRaw}
	first := layers.LayerTypeEthernet
	if d.raw {
		first = layers.LayerTypeIPv6
	}
	d.parser = gopacket.NewDecodingLayerParser(first, &d.eth, &d.ip6)
	// extension headers and payload are handled by the mutation core
	d.parser.IgnoreUnsupported = true
	return d
}

// IPv6Payload returns the sub-slice of frame that starts at the IPv6
// fixed header. Well-formed frames that do not carry IPv6 yield
// core.ErrNotIPv6; truncated or garbled frames yield a parse error.
func (d *Decoder) IPv6Payload(frame []byte) ([]byte, error) {
	d.decoded = d.decoded[:0]
	if err := d.parser.DecodeLayers(frame, &d.decoded); err != nil {
		return nil, err
	}

	sawIPv6 := false
	for _, lt := range d.decoded {
		if lt == layers.LayerTypeIPv6 {
			sawIPv6 = true
			break
		}
	}
	if !sawIPv6 {
		return nil, core.ErrNotIPv6
	}

	if d.raw {
		return frame, nil
	}
	// contents plus everything after: slicing from the original frame
	// keeps extension headers the parser did not walk
	off := len(frame) - len(d.eth.Payload)
	if off < 0 || off > len(frame) {
		return nil, core.ErrNotIPv6
	}
	return frame[off:], nil
}
