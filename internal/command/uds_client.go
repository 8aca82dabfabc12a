package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// UDSClient issues JSON-RPC calls against the daemon's control socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a client for socketPath. A zero timeout means
// ten seconds.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &UDSClient{socketPath: socketPath, timeout: timeout}
}

// Call sends one request and waits for its response.
func (c *UDSClient) Call(ctx context.Context, method string, params interface{}) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		paramsJSON = data
	}

	reqID := fmt.Sprintf("req-%d", time.Now().UnixNano())
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      reqID,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed without response")
	}

	var resp JSONRPCResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if got := fmt.Sprintf("%v", resp.ID); got != reqID {
		return nil, fmt.Errorf("response ID mismatch: sent %v, got %v", reqID, got)
	}

	return &Response{
		ID:     fmt.Sprintf("%v", resp.ID),
		Result: resp.Result,
		Error:  resp.Error,
	}, nil
}

// Status fetches the daemon_status result.
func (c *UDSClient) Status(ctx context.Context) (*Response, error) {
	return c.Call(ctx, "daemon_status", nil)
}

// DeviceList fetches the device table snapshot.
func (c *UDSClient) DeviceList(ctx context.Context) (*Response, error) {
	return c.Call(ctx, "device_list", nil)
}

// FirmwareStart begins a firmware update session on device.
func (c *UDSClient) FirmwareStart(ctx context.Context, device string, opts map[string]interface{}) (*Response, error) {
	return c.Call(ctx, "firmware_start", FirmwareStartParams{Device: device, Options: opts})
}

// FirmwareStop cancels the update session on device.
func (c *UDSClient) FirmwareStop(ctx context.Context, device string) (*Response, error) {
	return c.Call(ctx, "firmware_stop", FirmwareStopParams{Device: device})
}

// Shutdown asks the daemon to stop.
func (c *UDSClient) Shutdown(ctx context.Context) (*Response, error) {
	return c.Call(ctx, "daemon_shutdown", nil)
}
