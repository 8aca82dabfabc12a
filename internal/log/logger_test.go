package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	err := Init(cfg)
	require.Error(t, err)
}

func TestInitReplacesGlobalLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	require.NoError(t, Init(cfg))

	l := GetLogger()
	require.NotNil(t, l)
	assert.True(t, l.IsDebugEnabled())

	// Derived loggers keep working.
	l.WithField("component", "test").Debug("hello")
}

func TestNewLogrusLoggerFallsBackOnBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"

	var l Logger
	require.NotPanics(t, func() { l = newLogrusLogger(cfg) })
	require.NotNil(t, l)
	l.Info("still usable")
}

func TestFileAppenderRequiresPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File.Enabled = true
	err := Init(cfg)
	require.Error(t, err)
}
