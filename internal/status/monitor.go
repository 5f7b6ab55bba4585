// Package status tracks live tunnel activity for logging and the optional
// HTTP status endpoint.
package status

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor tracks active QUIC connections and relayed streams.
type Monitor struct {
	activeConns   atomic.Int64
	totalConns    atomic.Int64
	activeStreams atomic.Int64
	totalStreams  atomic.Int64
	bytesRelayed  atomic.Int64

	pingMap   sync.Map // connection id -> time.Time, last ping seen
	latencyMs sync.Map // connection id -> int64, last round trip in ms
}

// Global is the process-wide monitor, mirroring the teacher's package-level
// singleton so every tunnel handler shares one view of activity.
var Global = &Monitor{}

// IncConn/DecConn track QUIC connections accepted by the server (or opened
// by the client).
func (m *Monitor) IncConn() {
	m.activeConns.Add(1)
	m.totalConns.Add(1)
}

func (m *Monitor) DecConn() {
	m.activeConns.Add(-1)
}

// IncStream/DecStream track streams actively relaying data.
func (m *Monitor) IncStream() {
	m.activeStreams.Add(1)
	m.totalStreams.Add(1)
}

func (m *Monitor) DecStream() {
	m.activeStreams.Add(-1)
}

// AddBytes accumulates bytes relayed across all streams, for the status report.
func (m *Monitor) AddBytes(n int64) {
	m.bytesRelayed.Add(n)
}

// RegisterPing records a ping/pong round trip for connection id connID.
func (m *Monitor) RegisterPing(connID string, rtt time.Duration) {
	m.pingMap.Store(connID, time.Now())
	m.latencyMs.Store(connID, rtt.Milliseconds())
}

// GetLastAliveMs returns how long ago connID last answered a ping, in
// milliseconds, or -1 if it has never reported one.
func (m *Monitor) GetLastAliveMs(connID string) int64 {
	last, ok := m.pingMap.Load(connID)
	if !ok {
		return -1
	}
	return time.Since(last.(time.Time)).Milliseconds()
}

// GetLatencyMs returns the last observed ping round-trip time, or -1.
func (m *Monitor) GetLatencyMs(connID string) int64 {
	ms, ok := m.latencyMs.Load(connID)
	if !ok {
		return -1
	}
	return ms.(int64)
}

// Snapshot is a point-in-time view suitable for JSON encoding.
type Snapshot struct {
	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	ActiveStreams     int64 `json:"active_streams"`
	TotalStreams      int64 `json:"total_streams"`
	BytesRelayed      int64 `json:"bytes_relayed"`
	Goroutines        int   `json:"goroutines"`
}

// Snapshot returns the current counters.
func (m *Monitor) Snapshot() Snapshot {
	return Snapshot{
		ActiveConnections: m.activeConns.Load(),
		TotalConnections:  m.totalConns.Load(),
		ActiveStreams:     m.activeStreams.Load(),
		TotalStreams:      m.totalStreams.Load(),
		BytesRelayed:      m.bytesRelayed.Load(),
		Goroutines:        runtime.NumGoroutine(),
	}
}

// StartPeriodicLogging logs a one-line activity summary every interval,
// until stop is closed.
func (m *Monitor) StartPeriodicLogging(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				var mem runtime.MemStats
				runtime.ReadMemStats(&mem)
				s := m.Snapshot()
				log.Printf("MONITOR: connections active=%d total=%d | streams active=%d total=%d | bytes=%d | goroutines=%d | heap=%dMB",
					s.ActiveConnections, s.TotalConnections, s.ActiveStreams, s.TotalStreams, s.BytesRelayed, s.Goroutines, mem.HeapAlloc/1024/1024)
			}
		}
	}()
}
