// Package sink provides packet egress backends for stamped packets.
package sink

import (
	"fmt"

	"geomesh.io/hyperbr/internal/config"
)

// Sink consumes finalized packets.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Send emits one packet. The buffer must not be retained.
	Send(pkt []byte) error
	// Close releases the sink's resources.
	Close() error
}

// New builds the sink selected by cfg.
func New(cfg config.SinkConfig) (Sink, error) {
	switch cfg.Type {
	case "console":
		return newConsoleSink(), nil
	case "udp":
		return newUDPSink(cfg)
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
