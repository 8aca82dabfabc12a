package source

import (
	"context"
	"errors"
	"fmt"
	"net"

	"geomesh.io/hyperbr/internal/decoder"
	"geomesh.io/hyperbr/internal/log"
)

// maxDatagram bounds a single UDP-encapsulated IPv6 packet.
const maxDatagram = 65535

// udpSource receives IPv6 packets encapsulated in UDP datagrams, one
// packet per datagram.
type udpSource struct {
	listen string
}

func newUDPSource(listen string) (Source, error) {
	if listen == "" {
		return nil, fmt.Errorf("udp source requires a listen address")
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return nil, fmt.Errorf("udp source listen address: %w", err)
	}
	return &udpSource{listen: listen}, nil
}

func (s *udpSource) Name() string           { return "udp:" + s.listen }
func (s *udpSource) Link() decoder.LinkType { return decoder.LinkRaw }

func (s *udpSource) Run(ctx context.Context, out chan<- []byte) error {
	conn, err := net.ListenPacket("udp", s.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.listen, err)
	}

	// unblock ReadFrom when the context is cancelled
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	log.GetLogger().WithField("listen", conn.LocalAddr().String()).Info("udp source listening")

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("read datagram: %w", err)
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
