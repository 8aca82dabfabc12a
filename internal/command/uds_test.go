package command

import (
	"bufio"
	"context"
	"net"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geomesh.io/hyperbr/internal/core"
	"geomesh.io/hyperbr/internal/firmware"
	"geomesh.io/hyperbr/internal/pipeline"
	"geomesh.io/hyperbr/internal/registry"
)

func startServer(t *testing.T, h *Handler) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "ctl.sock")
	srv := NewUDSServer(sock, h)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// wait for the socket to appear
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", sock); err == nil {
			conn.Close()
			return sock
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("control socket never came up")
	return ""
}

func TestStatusRoundTrip(t *testing.T) {
	reg := registry.New(nil, nil)
	reg.Upsert(netip.MustParseAddr("fd00::1"), core.Coord{R: 1, T: 2}, 3)
	h := NewHandler(reg, nil, func() pipeline.Stats {
		return pipeline.Stats{Received: 10, Stamped: 7}
	})
	sock := startServer(t, h)

	c := NewUDSClient(sock, time.Second)
	resp, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	res, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), res["devices"])
	pipe, ok := res["pipeline"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), pipe["stamped"])
}

func TestDeviceList(t *testing.T) {
	reg := registry.New(nil, nil)
	reg.Upsert(netip.MustParseAddr("fd00::a"), core.Coord{R: 0.5, T: -0.5}, 1)
	sock := startServer(t, NewHandler(reg, nil, nil))

	c := NewUDSClient(sock, time.Second)
	resp, err := c.DeviceList(context.Background())
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	list, ok := resp.Result.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	rec := list[0].(map[string]interface{})
	assert.Equal(t, "fd00::a", rec["ip"])
}

func TestUnknownMethod(t *testing.T) {
	sock := startServer(t, NewHandler(nil, nil, nil))
	c := NewUDSClient(sock, time.Second)

	resp, err := c.Call(context.Background(), "no_such_method", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestFirmwareStartBadAddress(t *testing.T) {
	fw := firmware.NewManager(nopTransport{}, nil, firmware.Defaults{})
	h := NewHandler(nil, fw, nil)
	resp := h.Handle(context.Background(), Command{
		Method: "firmware_start",
		Params: []byte(`{"device":"not-an-ip"}`),
		ID:     "1",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

type nopTransport struct{}

func (nopTransport) SendChunk(context.Context, netip.Addr, int, []byte) error { return nil }

func TestShutdownInvokesCallback(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	called := make(chan struct{})
	h.SetShutdownFunc(func() { close(called) })
	sock := startServer(t, h)

	c := NewUDSClient(sock, time.Second)
	resp, err := c.Shutdown(context.Background())
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback not invoked")
	}
}

func TestParseErrorResponse(t *testing.T) {
	sock := startServer(t, NewHandler(nil, nil, nil))

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), "parse error")
}
