// Package command implements the local control plane: a JSON-RPC
// channel over a unix domain socket used by the CLI.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"geomesh.io/hyperbr/internal/firmware"
	"geomesh.io/hyperbr/internal/log"
	"geomesh.io/hyperbr/internal/pipeline"
	"geomesh.io/hyperbr/internal/registry"
)

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Handler dispatches control commands to the daemon's components.
type Handler struct {
	reg       *registry.Registry
	fw        *firmware.Manager
	stats     func() pipeline.Stats
	shutdown  func()
	startTime time.Time
}

// NewHandler creates a handler over the daemon's components. Any of
// them may be nil; the corresponding methods then report an internal
// error instead of panicking.
func NewHandler(reg *registry.Registry, fw *firmware.Manager, stats func() pipeline.Stats) *Handler {
	return &Handler{
		reg:       reg,
		fw:        fw,
		stats:     stats,
		startTime: time.Now(),
	}
}

// SetShutdownFunc sets the callback invoked by daemon_shutdown.
func (h *Handler) SetShutdownFunc(fn func()) { h.shutdown = fn }

// Handle processes one command and returns its response.
func (h *Handler) Handle(ctx context.Context, cmd Command) Response {
	log.GetLogger().WithField("method", cmd.Method).Debug("handling control command")

	switch cmd.Method {
	case "daemon_status":
		return h.handleStatus(cmd)
	case "device_list":
		return h.handleDeviceList(cmd)
	case "firmware_start":
		return h.handleFirmwareStart(cmd)
	case "firmware_stop":
		return h.handleFirmwareStop(cmd)
	case "daemon_shutdown":
		return h.handleShutdown(cmd)
	default:
		return errResponse(cmd.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", cmd.Method))
	}
}

// StatusResult is the daemon_status payload.
type StatusResult struct {
	Uptime   string         `json:"uptime"`
	Devices  int            `json:"devices"`
	Pipeline pipeline.Stats `json:"pipeline"`
}

func (h *Handler) handleStatus(cmd Command) Response {
	res := StatusResult{Uptime: time.Since(h.startTime).Round(time.Second).String()}
	if h.reg != nil {
		res.Devices = h.reg.Len()
	}
	if h.stats != nil {
		res.Pipeline = h.stats()
	}
	return Response{ID: cmd.ID, Result: res}
}

func (h *Handler) handleDeviceList(cmd Command) Response {
	if h.reg != nil {
		return Response{ID: cmd.ID, Result: h.reg.List()}
	}
	return errResponse(cmd.ID, ErrCodeInternalError, "registry not available")
}

// FirmwareStartParams are the firmware_start parameters.
type FirmwareStartParams struct {
	Device  string                 `json:"device"`
	Options map[string]interface{} `json:"options"`
}

func (h *Handler) handleFirmwareStart(cmd Command) Response {
	if h.fw == nil {
		return errResponse(cmd.ID, ErrCodeInternalError, "firmware manager not available")
	}
	var params FirmwareStartParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	addr, err := netip.ParseAddr(params.Device)
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid device address: %v", err))
	}
	st, err := h.fw.Start(addr, params.Options)
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}
	return Response{ID: cmd.ID, Result: st}
}

// FirmwareStopParams are the firmware_stop parameters.
type FirmwareStopParams struct {
	Device string `json:"device"`
}

func (h *Handler) handleFirmwareStop(cmd Command) Response {
	if h.fw == nil {
		return errResponse(cmd.ID, ErrCodeInternalError, "firmware manager not available")
	}
	var params FirmwareStopParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	addr, err := netip.ParseAddr(params.Device)
	if err != nil {
		return errResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid device address: %v", err))
	}
	if err := h.fw.Stop(addr); err != nil {
		return errResponse(cmd.ID, ErrCodeInternalError, err.Error())
	}
	return Response{ID: cmd.ID, Result: map[string]string{"status": "stopping"}}
}

func (h *Handler) handleShutdown(cmd Command) Response {
	if h.shutdown == nil {
		return errResponse(cmd.ID, ErrCodeInternalError, "shutdown not wired")
	}
	// respond first, then stop; the callback runs asynchronously
	go h.shutdown()
	return Response{ID: cmd.ID, Result: map[string]string{"status": "shutting down"}}
}

func errResponse(id string, code int, msg string) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: msg}}
}
