package sink

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv6"

	"geomesh.io/hyperbr/internal/config"
	"geomesh.io/hyperbr/internal/log"
)

// udpSink tunnels packets to a peer router inside UDP datagrams, one
// packet per datagram. Hop limit and traffic class apply to the outer
// datagram.
type udpSink struct {
	addr string
	conn net.Conn
}

func newUDPSink(cfg config.SinkConfig) (Sink, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("udp sink requires an address")
	}
	conn, err := net.Dial("udp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Address, err)
	}

	if cfg.HopLimit > 0 || cfg.TrafficClass > 0 {
		pc := ipv6.NewConn(conn)
		if cfg.HopLimit > 0 {
			if err := pc.SetHopLimit(cfg.HopLimit); err != nil {
				log.GetLogger().WithError(err).Warn("could not set hop limit on tunnel socket")
			}
		}
		if cfg.TrafficClass > 0 {
			if err := pc.SetTrafficClass(cfg.TrafficClass); err != nil {
				log.GetLogger().WithError(err).Warn("could not set traffic class on tunnel socket")
			}
		}
	}

	return &udpSink{addr: cfg.Address, conn: conn}, nil
}

func (s *udpSink) Name() string { return "udp:" + s.addr }

func (s *udpSink) Send(pkt []byte) error {
	if _, err := s.conn.Write(pkt); err != nil {
		return fmt.Errorf("send to %s: %w", s.addr, err)
	}
	return nil
}

func (s *udpSink) Close() error { return s.conn.Close() }
