// Package httpapi implements the HTTP/DNS shim's HTTP half (C7): the
// configuration API, status snapshot, Wi-Fi endpoints, reboot trigger, and
// the server-sent events stream, per §6's endpoint table. Handlers are
// plain net/http http.HandlerFunc values (no framework), following the
// reference engine's own telemetryhttp handlers.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"tachtalk/engine/adapter"
	"tachtalk/engine/config"
	"tachtalk/engine/status"
	"tachtalk/engine/telemetry/logging"
	"tachtalk/engine/telemetry/metrics"
	"tachtalk/internal/rpmcell"
	"tachtalk/wifi"
)

// Server wires the HTTP handlers described in §6 onto a *http.Server.
type Server struct {
	cfg          *config.Store
	bus          status.Bus
	rpm          *rpmcell.Cell
	adapterState func() adapter.ConnState
	wifiMgr      wifi.Manager
	reboot       func()
	metrics      metrics.Provider
	log          logging.Logger
	uiBytes      []byte
}

// Deps bundles Server's collaborators.
type Deps struct {
	Config       *config.Store
	Bus          status.Bus
	RPM          *rpmcell.Cell
	AdapterState func() adapter.ConnState
	WifiManager  wifi.Manager
	Reboot       func()
	Metrics      metrics.Provider // nil disables GET /metrics
	Log          logging.Logger
	UIBytes      []byte // embedded UI bytes served at GET /
}

// NewServer constructs an *http.Server with every §6 endpoint registered.
func NewServer(addr string, deps Deps) *http.Server {
	s := &Server{
		cfg: deps.Config, bus: deps.Bus, rpm: deps.RPM,
		adapterState: deps.AdapterState, wifiMgr: deps.WifiManager,
		reboot: deps.Reboot, metrics: deps.Metrics, log: deps.Log, uiBytes: deps.UIBytes,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handlePostConfig)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/wifi/scan", s.handleWifiScan)
	mux.HandleFunc("POST /api/wifi", s.handlePostWifi)
	mux.HandleFunc("POST /api/reboot", s.handleReboot)
	mux.HandleFunc("GET /events", s.handleEvents)
	if s.metrics != nil {
		if prom, ok := s.metrics.(interface{ MetricsHandler() http.Handler }); ok {
			mux.Handle("GET /metrics", prom.MetricsHandler())
		}
	}
	return &http.Server{Addr: addr, Handler: mux}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.uiBytes)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Load())
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var next config.Config
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rev, err := s.cfg.Update(r.Context(), next)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

type statusResponse struct {
	AdapterState string    `json:"adapter_state"`
	RPM          uint16    `json:"rpm"`
	RPMAt        time.Time `json:"rpm_at"`
	Revision     int64     `json:"config_revision"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sample := s.rpm.Get()
	writeJSON(w, http.StatusOK, statusResponse{
		AdapterState: s.adapterState().String(),
		RPM:          sample.RPM,
		RPMAt:        sample.Timestamp,
		Revision:     s.cfg.Snapshot().Seq,
	})
}

func (s *Server) handleWifiScan(w http.ResponseWriter, r *http.Request) {
	networks, err := s.wifiMgr.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, networks)
}

type wifiRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	DHCP     bool   `json:"dhcp"`
}

func (s *Server) handlePostWifi(w http.ResponseWriter, r *http.Request) {
	var req wifiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.wifiMgr.Configure(r.Context(), wifi.Credentials{SSID: req.SSID, Password: req.Password, DHCP: req.DHCP}); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	if s.reboot != nil {
		go func() {
			time.Sleep(100 * time.Millisecond) // "scheduled restart in >= 100ms", §6
			s.reboot()
		}()
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
