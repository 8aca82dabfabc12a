// Package dashboard exposes the HTTP API and the websocket push feed
// used by the web dashboard.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/websocket"

	"geomesh.io/hyperbr/internal/eventbus"
	"geomesh.io/hyperbr/internal/firmware"
	"geomesh.io/hyperbr/internal/log"
	"geomesh.io/hyperbr/internal/pipeline"
	"geomesh.io/hyperbr/internal/registry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the dashboard API on one listen address.
type Server struct {
	addr  string
	reg   *registry.Registry
	fw    *firmware.Manager
	stats func() pipeline.Stats

	hub    *hub
	server *http.Server
}

// NewServer wires the dashboard over the daemon's components and
// subscribes the push feed to bus. stats may be nil.
func NewServer(addr string, reg *registry.Registry, fw *firmware.Manager, stats func() pipeline.Stats, bus eventbus.EventBus) (*Server, error) {
	s := &Server{
		addr:  addr,
		reg:   reg,
		fw:    fw,
		stats: stats,
		hub:   newHub(),
	}
	if bus != nil {
		if err := bus.Subscribe(eventbus.TopicDeviceUpdate, s.onEvent("device")); err != nil {
			return nil, err
		}
		if err := bus.Subscribe(eventbus.TopicFirmwareProgress, s.onEvent("firmware")); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) onEvent(typ string) eventbus.Handler {
	return func(event *eventbus.Event) error {
		s.hub.broadcast(pushMessage{Type: typ, Data: event.Payload})
		return nil
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/devices", s.handleDevices)
	mux.HandleFunc("/api/firmware/start", s.handleFirmwareStart)
	mux.HandleFunc("/api/firmware/stop", s.handleFirmwareStop)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.routes(),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	log.GetLogger().WithField("addr", s.addr).Info("dashboard listening")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.GetLogger().WithError(err).Error("dashboard server error")
		}
	}()
	return nil
}

// Stop shuts the server down and disconnects push clients.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	s.hub.close()
	if err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res := struct {
		Devices  int            `json:"devices"`
		Clients  int            `json:"ws_clients"`
		Pipeline pipeline.Stats `json:"pipeline"`
	}{Clients: s.hub.count()}
	if s.reg != nil {
		res.Devices = s.reg.Len()
	}
	if s.stats != nil {
		res.Pipeline = s.stats()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.reg == nil {
		http.Error(w, "registry not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.reg.List())
}

type firmwareRequest struct {
	Device  string                 `json:"device"`
	Options map[string]interface{} `json:"options"`
}

func (s *Server) handleFirmwareStart(w http.ResponseWriter, r *http.Request) {
	addr, req, ok := s.firmwareRequest(w, r)
	if !ok {
		return
	}
	st, err := s.fw.Start(addr, req.Options)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) handleFirmwareStop(w http.ResponseWriter, r *http.Request) {
	addr, _, ok := s.firmwareRequest(w, r)
	if !ok {
		return
	}
	if err := s.fw.Stop(addr); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// firmwareRequest validates the shared preconditions of the firmware
// endpoints.
func (s *Server) firmwareRequest(w http.ResponseWriter, r *http.Request) (netip.Addr, firmwareRequest, bool) {
	var req firmwareRequest
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return netip.Addr{}, req, false
	}
	if s.fw == nil {
		http.Error(w, "firmware manager not available", http.StatusServiceUnavailable)
		return netip.Addr{}, req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return netip.Addr{}, req, false
	}
	addr, err := netip.ParseAddr(req.Device)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid device address: %v", err), http.StatusBadRequest)
		return netip.Addr{}, req, false
	}
	return addr, req, true
}

// handleWS upgrades the connection and sends a device table snapshot
// before incremental pushes begin.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	// snapshot goes out before the hub's writer owns the connection;
	// gorilla allows only one concurrent writer
	if s.reg != nil {
		if err := conn.WriteJSON(pushMessage{Type: "snapshot", Data: s.reg.List()}); err != nil {
			conn.Close()
			return
		}
	}
	if !s.hub.add(conn) {
		conn.Close()
		return
	}
	// drain control frames so pings and close get processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(conn)
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().WithError(err).Debug("response encode failed")
	}
}
