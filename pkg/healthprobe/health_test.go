package healthprobe

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestNew(t *testing.T) {
	hc := New()

	if time.Since(hc.startTime) > 1*time.Second {
		t.Errorf("Start time is too old: %v", hc.startTime)
	}

	// Verify not ready by default
	if hc.ready.Load() {
		t.Error("HealthChecker should not be ready by default")
	}
}

func TestSetReady_Toggle(t *testing.T) {
	hc := New()

	for _, want := range []bool{true, false, true} {
		hc.SetReady(want)
		if hc.ready.Load() != want {
			t.Errorf("ready = %v, want %v", hc.ready.Load(), want)
		}
	}
}

func TestHealth(t *testing.T) {
	hc := New()

	rec := httptest.NewRecorder()
	hc.Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.LastCycle != nil {
		t.Error("expected no last cycle before the first pass")
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		wantCode   int
		wantStatus string
	}{
		{name: "not_ready", ready: false, wantCode: http.StatusServiceUnavailable, wantStatus: "not_ready"},
		{name: "ready", ready: true, wantCode: http.StatusOK, wantStatus: "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New()
			hc.SetReady(tt.ready)

			rec := httptest.NewRecorder()
			hc.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
		})
	}
}

func TestRecordWalletAndCycle(t *testing.T) {
	hc := New()
	hc.RecordWallet("1", nil)
	hc.RecordWallet("2", errors.New("fetch positions: 502"))
	hc.RecordCycle()

	rec := httptest.NewRecorder()
	hc.Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Cycles != 1 {
		t.Errorf("cycles = %d, want 1", resp.Cycles)
	}
	if resp.LastCycle == nil {
		t.Fatal("expected last cycle")
	}
	if !resp.Wallets["1"].OK {
		t.Error("wallet 1 should be ok")
	}
	if resp.Wallets["2"].OK || resp.Wallets["2"].Error == "" {
		t.Errorf("wallet 2 = %+v, want failure with error", resp.Wallets["2"])
	}
}
