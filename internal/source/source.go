// Package source provides packet ingest backends. A source pushes raw
// frames into the pipeline's intake channel until its input is
// exhausted or the context is cancelled.
package source

import (
	"context"
	"fmt"

	"geomesh.io/hyperbr/internal/config"
	"geomesh.io/hyperbr/internal/decoder"
)

// Source is a running packet origin.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Link reports how frames from this source are framed.
	Link() decoder.LinkType
	// Run pushes frames into out until ctx is cancelled or the input
	// is exhausted. Run does not close out.
	Run(ctx context.Context, out chan<- []byte) error
}

// New builds the source selected by cfg.
func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Type {
	case "file":
		return newFileSource(cfg.Path)
	case "udp":
		return newUDPSource(cfg.Listen)
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}
