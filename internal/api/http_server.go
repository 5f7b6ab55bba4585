// Package api serves an optional HTTP status endpoint reflecting live
// tunnel activity, for operators who enable it in server config.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"qpiped/internal/limiter"
	"qpiped/internal/status"
)

// Server is a small HTTP server exposing /status as JSON.
type Server struct {
	listenAddr string
	monitor    *status.Monitor
	limiter    *limiter.SharedLimiter
	connID     string

	httpSrv *http.Server
	ln      net.Listener
}

// NewServer returns a Server bound to listenAddr once Start is called.
// connID, when non-empty, names the tunnel connection (as passed to
// tunnel.Keepalive) whose last ping age and round-trip latency should be
// reported; the server side of qpiped, which receives pings rather than
// sending them, passes "" to omit these fields.
func NewServer(listenAddr string, monitor *status.Monitor, sl *limiter.SharedLimiter, connID string) *Server {
	return &Server{listenAddr: listenAddr, monitor: monitor, limiter: sl, connID: connID}
}

// Start begins listening and serving in the background. It returns once the
// listener is up, or an error if it could not bind.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)

	h := &http.Server{Addr: s.listenAddr, Handler: mux}
	s.httpSrv = h

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		log.Printf("api: starting status server on %s", s.listenAddr)
		if err := h.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("api: http server error: %v", err)
		}
	}()

	return nil
}

// Stop attempts a graceful shutdown with a 5s timeout.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

type statusDTO struct {
	ActiveConnections int64   `json:"active_connections"`
	TotalConnections  int64   `json:"total_connections"`
	ActiveStreams     int64   `json:"active_streams"`
	TotalStreams      int64   `json:"total_streams"`
	BytesRelayed      int64   `json:"bytes_relayed"`
	Goroutines        int     `json:"goroutines"`
	MaxRateBitsPerSec int64   `json:"max_rate_bps"`
	ActiveRateBps     float64 `json:"active_rate_bps"`
	LastPingAgeMs     int64   `json:"last_ping_age_ms"`
	LastPingLatencyMs int64   `json:"last_ping_latency_ms"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap := s.monitor.Snapshot()
	dto := statusDTO{
		ActiveConnections: snap.ActiveConnections,
		TotalConnections:  snap.TotalConnections,
		ActiveStreams:     snap.ActiveStreams,
		TotalStreams:      snap.TotalStreams,
		BytesRelayed:      snap.BytesRelayed,
		Goroutines:        snap.Goroutines,
		LastPingAgeMs:     -1,
		LastPingLatencyMs: -1,
	}
	if s.limiter != nil {
		dto.MaxRateBitsPerSec = s.limiter.GetMaxRate() * 8
		dto.ActiveRateBps = float64(s.limiter.GetActiveRate()) * 8.0
	}
	if s.connID != "" {
		dto.LastPingAgeMs = s.monitor.GetLastAliveMs(s.connID)
		dto.LastPingLatencyMs = s.monitor.GetLatencyMs(s.connID)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto); err != nil {
		log.Printf("api: encode error: %v", err)
	}
}
