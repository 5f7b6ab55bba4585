package status

import (
	"testing"
	"time"
)

func TestMonitorCounters(t *testing.T) {
	m := &Monitor{}
	m.IncConn()
	m.IncStream()
	m.IncStream()
	m.AddBytes(1024)

	s := m.Snapshot()
	if s.ActiveConnections != 1 || s.TotalConnections != 1 {
		t.Errorf("unexpected connection counts: %+v", s)
	}
	if s.ActiveStreams != 2 || s.TotalStreams != 2 {
		t.Errorf("unexpected stream counts: %+v", s)
	}
	if s.BytesRelayed != 1024 {
		t.Errorf("expected 1024 bytes relayed, got %d", s.BytesRelayed)
	}

	m.DecStream()
	if m.Snapshot().ActiveStreams != 1 {
		t.Error("expected active streams to decrement")
	}
}

func TestMonitorPingTracking(t *testing.T) {
	m := &Monitor{}
	if m.GetLastAliveMs("conn-1") != -1 {
		t.Error("expected -1 for a connection that never pinged")
	}
	m.RegisterPing("conn-1", 42*time.Millisecond)
	if m.GetLatencyMs("conn-1") != 42 {
		t.Errorf("expected 42ms latency, got %d", m.GetLatencyMs("conn-1"))
	}
	if m.GetLastAliveMs("conn-1") < 0 {
		t.Error("expected a non-negative last-alive duration after a ping")
	}
}
