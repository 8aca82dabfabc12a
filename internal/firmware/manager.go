// Package firmware implements the firmware-update control surface: one
// chunked transfer session at a time per device, started and stopped by
// device address from the dashboard or the control socket.
package firmware

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	uuid "github.com/satori/go.uuid"

	"geomesh.io/hyperbr/internal/core"
	"geomesh.io/hyperbr/internal/eventbus"
	"geomesh.io/hyperbr/internal/log"
)

// Transport delivers firmware chunks to a device. Implementations are
// provided by the forwarding layer.
type Transport interface {
	SendChunk(ctx context.Context, device netip.Addr, offset int, chunk []byte) error
}

// Defaults bound sessions whose params omit a value.
type Defaults struct {
	ChunkSize int
	Interval  time.Duration
}

// Manager tracks active and finished update sessions. Safe for
// concurrent use.
type Manager struct {
	transport Transport
	bus       eventbus.EventBus // nil = no progress events
	defaults  Defaults

	mu       sync.Mutex
	sessions map[netip.Addr]*session
	wg       sync.WaitGroup
}

type session struct {
	id      string
	device  netip.Addr
	params  JobParams
	image   []byte
	state   State
	sent    int
	started time.Time
	cancel  context.CancelFunc
}

// NewManager creates a Manager sending chunks through transport.
func NewManager(transport Transport, bus eventbus.EventBus, defaults Defaults) *Manager {
	if defaults.ChunkSize <= 0 {
		defaults.ChunkSize = 1024
	}
	if defaults.Interval <= 0 {
		defaults.Interval = 100 * time.Millisecond
	}
	return &Manager{
		transport: transport,
		bus:       bus,
		defaults:  defaults,
		sessions:  make(map[netip.Addr]*session),
	}
}

// Start begins an update session for device. opts is decoded into
// JobParams; at minimum image_path must be present. A device with a
// pending or running session rejects a second start.
func (m *Manager) Start(device netip.Addr, opts map[string]interface{}) (Status, error) {
	var params JobParams
	if err := mapstructure.Decode(opts, &params); err != nil {
		return Status{}, fmt.Errorf("firmware: decode job params: %w", err)
	}
	if params.ImagePath == "" {
		return Status{}, fmt.Errorf("firmware: image_path is required")
	}
	if params.ChunkSize <= 0 {
		params.ChunkSize = m.defaults.ChunkSize
	}
	interval := m.defaults.Interval
	if params.Interval != "" {
		d, err := time.ParseDuration(params.Interval)
		if err != nil {
			return Status{}, fmt.Errorf("firmware: invalid interval: %w", err)
		}
		interval = d
	}

	image, err := os.ReadFile(params.ImagePath)
	if err != nil {
		return Status{}, fmt.Errorf("firmware: read image: %w", err)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[device]; ok && existing.active() {
		m.mu.Unlock()
		return Status{}, core.ErrUpdateInProgress
	}
	uid, err := uuid.NewV4()
	if err != nil {
		m.mu.Unlock()
		return Status{}, fmt.Errorf("firmware: session id: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:      uid.String(),
		device:  device,
		params:  params,
		image:   image,
		state:   StatePending,
		started: time.Now().UTC(),
		cancel:  cancel,
	}
	m.sessions[device] = s
	m.mu.Unlock()

	log.GetLogger().WithFields(map[string]interface{}{
		"device":  device.String(),
		"session": s.id,
		"bytes":   len(image),
	}).Info("firmware update session started")

	m.wg.Add(1)
	go m.run(ctx, s, interval)

	return m.snapshot(s), nil
}

// Stop cancels the active session for device.
func (m *Manager) Stop(device netip.Addr) error {
	m.mu.Lock()
	s, ok := m.sessions[device]
	if !ok || !s.active() {
		m.mu.Unlock()
		return core.ErrNoUpdate
	}
	s.cancel()
	m.mu.Unlock()
	return nil
}

// Status returns the snapshot of the most recent session for device.
func (m *Manager) Status(device netip.Addr) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[device]
	if !ok {
		return Status{}, core.ErrNoUpdate
	}
	return m.snapshotLocked(s), nil
}

// List returns snapshots of all known sessions.
func (m *Manager) List() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, m.snapshotLocked(s))
	}
	return out
}

// Close stops all active sessions and waits for their workers.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.active() {
			s.cancel()
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (s *session) active() bool {
	return s.state == StatePending || s.state == StateRunning
}

func (m *Manager) snapshot(s *session) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(s)
}

func (m *Manager) snapshotLocked(s *session) Status {
	return Status{
		SessionID: s.id,
		Device:    s.device.String(),
		State:     s.state,
		SentBytes: s.sent,
		Total:     len(s.image),
		StartedAt: s.started,
	}
}

// run drives one chunked transfer until completion, cancellation, or a
// transport failure.
func (m *Manager) run(ctx context.Context, s *session, interval time.Duration) {
	defer m.wg.Done()

	m.transition(s, StateRunning, "")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for offset := 0; offset < len(s.image); {
		select {
		case <-ctx.Done():
			m.transition(s, StateStopped, "")
			return
		case <-ticker.C:
		}

		end := offset + s.params.ChunkSize
		if end > len(s.image) {
			end = len(s.image)
		}
		if err := m.transport.SendChunk(ctx, s.device, offset, s.image[offset:end]); err != nil {
			m.transition(s, StateFailed, err.Error())
			return
		}
		offset = end

		m.mu.Lock()
		s.sent = offset
		m.mu.Unlock()
		m.publish(s, "")
	}

	m.transition(s, StateComplete, "")
}

func (m *Manager) transition(s *session, state State, errMsg string) {
	m.mu.Lock()
	s.state = state
	m.mu.Unlock()
	m.publish(s, errMsg)
}

func (m *Manager) publish(s *session, errMsg string) {
	if m.bus == nil {
		return
	}
	m.mu.Lock()
	progress := Progress{
		SessionID: s.id,
		Device:    s.device.String(),
		State:     s.state,
		SentBytes: s.sent,
		Total:     len(s.image),
		Error:     errMsg,
		UpdatedAt: time.Now().UTC(),
	}
	m.mu.Unlock()

	err := m.bus.Publish(&eventbus.Event{
		Topic:   eventbus.TopicFirmwareProgress,
		Key:     progress.Device,
		Payload: progress,
	})
	if err != nil {
		log.GetLogger().WithError(err).Debug("dropped firmware progress event")
	}
}
