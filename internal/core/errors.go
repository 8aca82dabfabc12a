// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Call sites wrap these with context via fmt.Errorf("...: %w", err).
var (
	// Packet buffer errors
	ErrPacketTooShort  = errors.New("hyperbr: packet too short")
	ErrNotIPv6         = errors.New("hyperbr: not an IPv6 packet")
	ErrBufferFull      = errors.New("hyperbr: packet buffer capacity exceeded")
	ErrMalformedOption = errors.New("hyperbr: malformed hop-by-hop option")
	ErrOptionTooLong   = errors.New("hyperbr: option content exceeds 255 octets")

	// Registry errors
	ErrDeviceNotFound = errors.New("hyperbr: device not found")

	// Firmware update errors
	ErrUpdateInProgress = errors.New("hyperbr: firmware update already in progress")
	ErrNoUpdate         = errors.New("hyperbr: no firmware update in progress")

	// Pipeline errors
	ErrPipelineStopped = errors.New("hyperbr: pipeline stopped")

	// Configuration errors
	ErrConfigInvalid = errors.New("hyperbr: invalid configuration")

	// Daemon errors
	ErrDaemonNotRunning = errors.New("hyperbr: daemon not running")
)
