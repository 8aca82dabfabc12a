package pipeline

import (
	"context"
	"encoding/binary"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geomesh.io/hyperbr/internal/config"
	"geomesh.io/hyperbr/internal/core/ipv6"
	"geomesh.io/hyperbr/internal/decoder"
	"geomesh.io/hyperbr/internal/hyperspace"
	"geomesh.io/hyperbr/internal/registry"
)

// stubSource replays prepared raw IPv6 frames and then returns.
type stubSource struct {
	frames [][]byte
}

func (s *stubSource) Name() string           { return "stub" }
func (s *stubSource) Link() decoder.LinkType { return decoder.LinkRaw }

func (s *stubSource) Run(ctx context.Context, out chan<- []byte) error {
	for _, f := range s.frames {
		select {
		case out <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// captureSink collects every packet it is handed.
type captureSink struct {
	mu   sync.Mutex
	pkts [][]byte
}

func (s *captureSink) Name() string { return "capture" }
func (s *captureSink) Close() error { return nil }

func (s *captureSink) Send(pkt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := make([]byte, len(pkt))
	copy(c, pkt)
	s.pkts = append(s.pkts, c)
	return nil
}

func (s *captureSink) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pkts
}

func testConfig(workers int) *config.GlobalConfig {
	return &config.GlobalConfig{
		Node: config.NodeConfig{R: 1.5, T: 0.25, Seq: 7},
		Ingest: config.IngestConfig{
			Workers:    workers,
			BufferSize: 2048,
			QueueSize:  16,
		},
	}
}

// plainPacket builds a 48-byte IPv6 packet with an 8-byte UDP payload.
func plainPacket(src, dst string) []byte {
	b := make([]byte, 48)
	b[0] = 0x60
	binary.BigEndian.PutUint16(b[4:6], 8)
	b[6] = ipv6.ProtoUDP
	b[7] = 64
	copy(b[8:24], netip.MustParseAddr(src).AsSlice())
	copy(b[24:40], netip.MustParseAddr(dst).AsSlice())
	binary.BigEndian.PutUint16(b[40:42], 5353)
	binary.BigEndian.PutUint16(b[42:44], 5353)
	binary.BigEndian.PutUint16(b[44:46], 8)
	return b
}

// stampedPacket builds a packet already carrying a coordinate option
// with its destination fields set.
func stampedPacket(t *testing.T, src string, destR, destT float32, destSeq uint8) []byte {
	t.Helper()
	p := ipv6.NewPacket(2048)
	require.NoError(t, p.Load(plainPacket(src, "fd00::ff")))
	opt, _, err := hyperspace.Insert(hyperspace.NewContext(0), p)
	require.NoError(t, err)
	opt.SetDestination(destR, destT, destSeq)
	require.NoError(t, p.Finalize())
	out := make([]byte, p.Len())
	copy(out, p.Bytes())
	return out
}

func runToCompletion(t *testing.T, pl *Pipeline) {
	t.Helper()
	require.NoError(t, pl.Start())
	require.NoError(t, pl.Wait())
	pl.Stop()
}

func TestStampsPlainPackets(t *testing.T) {
	snk := &captureSink{}
	src := &stubSource{frames: [][]byte{plainPacket("fd00::1", "fd00::2")}}
	pl := New(testConfig(1), src, snk, nil)

	runToCompletion(t, pl)

	pkts := snk.all()
	require.Len(t, pkts, 1)

	p := ipv6.NewPacket(2048)
	require.NoError(t, p.Load(pkts[0]))
	opt, found, err := hyperspace.Find(p)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float32(1.5), opt.SourceR())
	assert.Equal(t, float32(0.25), opt.SourceT())
	assert.Equal(t, uint8(7), opt.SourceSeq())
	_, _, ok := opt.Destination()
	assert.False(t, ok, "stamped packet should leave destination unset")

	st := pl.Stats()
	assert.Equal(t, uint64(1), st.Received)
	assert.Equal(t, uint64(1), st.Stamped)
	assert.Zero(t, st.Dropped)
}

func TestObservesResponsePackets(t *testing.T) {
	reg := registry.New(nil, nil)
	snk := &captureSink{}
	frame := stampedPacket(t, "fd00::42", 2.5, -1.0, 9)
	src := &stubSource{frames: [][]byte{frame}}
	pl := New(testConfig(1), src, snk, reg)

	runToCompletion(t, pl)

	rec, err := reg.Get(netip.MustParseAddr("fd00::42"))
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), rec.R)
	assert.Equal(t, float32(-1.0), rec.T)
	assert.Equal(t, uint8(9), rec.Seq)

	require.Len(t, snk.all(), 1)
	st := pl.Stats()
	assert.Equal(t, uint64(1), st.Observed)
	assert.Zero(t, st.Stamped)
}

func TestDropsUndecodableFrames(t *testing.T) {
	snk := &captureSink{}
	src := &stubSource{frames: [][]byte{
		{0x45, 0x00, 0x00, 0x14}, // IPv4 nibble
		plainPacket("fd00::1", "fd00::2"),
	}}
	pl := New(testConfig(1), src, snk, nil)

	runToCompletion(t, pl)

	assert.Len(t, snk.all(), 1)
	st := pl.Stats()
	assert.Equal(t, uint64(2), st.Received)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, uint64(1), st.Stamped)
}

func TestConcurrentWorkers(t *testing.T) {
	const n = 200
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = plainPacket("fd00::1", "fd00::2")
	}
	snk := &captureSink{}
	pl := New(testConfig(4), &stubSource{frames: frames}, snk, nil)

	runToCompletion(t, pl)

	assert.Len(t, snk.all(), n)
	st := pl.Stats()
	assert.Equal(t, uint64(n), st.Stamped)
}

func TestStopCancelsBlockedSource(t *testing.T) {
	blocking := &blockingSource{release: make(chan struct{})}
	pl := New(testConfig(1), blocking, &captureSink{}, nil)
	require.NoError(t, pl.Start())

	done := make(chan struct{})
	go func() {
		pl.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Error(t, pl.Start(), "restart is not supported")
}

type blockingSource struct {
	release chan struct{}
}

func (s *blockingSource) Name() string           { return "blocking" }
func (s *blockingSource) Link() decoder.LinkType { return decoder.LinkRaw }

func (s *blockingSource) Run(ctx context.Context, _ chan<- []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.release:
		return nil
	}
}
