package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geomesh.io/hyperbr/internal/core"
	"geomesh.io/hyperbr/internal/eventbus"
	"geomesh.io/hyperbr/internal/firmware"
	"geomesh.io/hyperbr/internal/registry"
)

type nopTransport struct{}

func (nopTransport) SendChunk(context.Context, netip.Addr, int, []byte) error { return nil }

func newTestServer(t *testing.T, bus eventbus.EventBus, reg *registry.Registry) (*Server, *httptest.Server) {
	t.Helper()
	fw := firmware.NewManager(nopTransport{}, bus, firmware.Defaults{
		ChunkSize: 64,
		Interval:  time.Millisecond,
	})
	s, err := NewServer("127.0.0.1:0", reg, fw, nil, bus)
	require.NoError(t, err)
	ts := httptest.NewServer(s.routes())
	t.Cleanup(func() {
		ts.Close()
		s.hub.close()
		fw.Close()
	})
	return s, ts
}

func TestDevicesEndpoint(t *testing.T) {
	reg := registry.New(nil, nil)
	reg.Upsert(netip.MustParseAddr("fd00::1"), core.Coord{R: 1, T: 2}, 4)
	_, ts := newTestServer(t, nil, reg)

	resp, err := http.Get(ts.URL + "/api/devices")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var devices []core.DeviceRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "fd00::1", devices[0].IP.String())
	assert.Equal(t, float32(1), devices[0].R)
}

func TestStatusEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil, registry.New(nil, nil))

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Contains(t, status, "devices")
	assert.Contains(t, status, "pipeline")
}

func TestFirmwareEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil, nil)

	image := filepath.Join(t.TempDir(), "fw.bin")
	require.NoError(t, os.WriteFile(image, make([]byte, 16), 0o644))

	body, _ := json.Marshal(map[string]interface{}{
		"device":  "fd00::9",
		"options": map[string]interface{}{"image_path": image},
	})
	resp, err := http.Post(ts.URL+"/api/firmware/start", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// bad address rejected
	resp, err = http.Post(ts.URL+"/api/firmware/start", "application/json",
		strings.NewReader(`{"device":"bogus"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// stop with no active session conflicts
	resp, err = http.Post(ts.URL+"/api/firmware/stop", "application/json",
		strings.NewReader(`{"device":"fd00::aa"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWebsocketSnapshotAndPush(t *testing.T) {
	bus := eventbus.New(4, 64)
	defer bus.Close()
	reg := registry.New(bus, nil)
	reg.Upsert(netip.MustParseAddr("fd00::1"), core.Coord{R: 1, T: 1}, 1)
	_, ts := newTestServer(t, bus, reg)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var snapshot pushMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "snapshot", snapshot.Type)

	// an upsert after connect arrives as an incremental push
	reg.Upsert(netip.MustParseAddr("fd00::2"), core.Coord{R: 3, T: 4}, 2)

	var push pushMessage
	require.NoError(t, conn.ReadJSON(&push))
	assert.Equal(t, "device", push.Type)
	rec, ok := push.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "fd00::2", rec["ip"])
}
