package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"geomesh.io/hyperbr/internal/decoder"
	"geomesh.io/hyperbr/internal/log"
)

// fileSource replays a pcap capture. Useful for offline runs and
// pipeline tests.
type fileSource struct {
	path string
	link decoder.LinkType
}

func newFileSource(path string) (Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file source requires a path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap %s: %w", path, err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read pcap header %s: %w", path, err)
	}
	link := decoder.LinkRaw
	if r.LinkType() == layers.LinkTypeEthernet {
		link = decoder.LinkEthernet
	}
	f.Close()
	return &fileSource{path: path, link: link}, nil
}

func (s *fileSource) Name() string           { return "file:" + s.path }
func (s *fileSource) Link() decoder.LinkType { return s.link }

func (s *fileSource) Run(ctx context.Context, out chan<- []byte) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open pcap %s: %w", s.path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return fmt.Errorf("read pcap header %s: %w", s.path, err)
	}

	n := 0
	for {
		data, _, err := r.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.GetLogger().WithField("packets", n).Info("pcap replay finished")
				return nil
			}
			return fmt.Errorf("read packet: %w", err)
		}
		select {
		case out <- data:
			n++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
