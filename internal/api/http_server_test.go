package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"qpiped/internal/limiter"
	"qpiped/internal/status"
)

func TestHandleStatusReturnsJSON(t *testing.T) {
	monitor := &status.Monitor{}
	monitor.IncConn()
	monitor.IncStream()
	monitor.AddBytes(2048)

	monitor.RegisterPing("upstream", 17*time.Millisecond)

	sl := limiter.NewSharedLimiter(1024 * 1024)
	srv := NewServer(":0", monitor, sl, "upstream")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	srv.handleStatus(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}

	var dto statusDTO
	if err := json.NewDecoder(res.Body).Decode(&dto); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if dto.ActiveConnections != 1 {
		t.Errorf("expected 1 active connection, got %d", dto.ActiveConnections)
	}
	if dto.BytesRelayed != 2048 {
		t.Errorf("expected 2048 bytes relayed, got %d", dto.BytesRelayed)
	}
	if dto.MaxRateBitsPerSec != 1024*1024*8 {
		t.Errorf("expected max rate %d, got %d", 1024*1024*8, dto.MaxRateBitsPerSec)
	}
	if dto.LastPingLatencyMs != 17 {
		t.Errorf("expected 17ms last ping latency, got %d", dto.LastPingLatencyMs)
	}
	if dto.LastPingAgeMs < 0 {
		t.Errorf("expected a non-negative last ping age, got %d", dto.LastPingAgeMs)
	}
}

func TestHandleStatusOmitsPingFieldsWithoutConnID(t *testing.T) {
	monitor := &status.Monitor{}
	srv := NewServer(":0", monitor, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	var dto statusDTO
	if err := json.NewDecoder(w.Result().Body).Decode(&dto); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if dto.LastPingAgeMs != -1 || dto.LastPingLatencyMs != -1 {
		t.Errorf("expected -1 ping fields without a connID, got age=%d latency=%d", dto.LastPingAgeMs, dto.LastPingLatencyMs)
	}
}

func TestHandleStatusRejectsNonGet(t *testing.T) {
	srv := NewServer(":0", &status.Monitor{}, nil, "")

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, req)

	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Result().StatusCode)
	}
}
