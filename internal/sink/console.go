package sink

import (
	"encoding/hex"

	"geomesh.io/hyperbr/internal/log"
)

// consoleSink dumps packets to the log. Debug aid, not a transport.
type consoleSink struct{}

func newConsoleSink() Sink { return consoleSink{} }

func (consoleSink) Name() string { return "console" }

func (consoleSink) Send(pkt []byte) error {
	logger := log.GetLogger()
	if logger.IsDebugEnabled() {
		logger.WithField("len", len(pkt)).Debugf("packet out\n%s", hex.Dump(pkt))
	} else {
		logger.WithField("len", len(pkt)).Info("packet out")
	}
	return nil
}

func (consoleSink) Close() error { return nil }
