package healthprobe

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker provides health and readiness checks for the scan loop.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool

	mu         sync.RWMutex
	cycles     int64
	lastCycle  time.Time
	lastWallet map[string]WalletStatus
}

// WalletStatus is the outcome of the most recent cycle of one wallet.
type WalletStatus struct {
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		lastWallet: make(map[string]WalletStatus),
	}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RecordWallet stores the outcome of a wallet cycle. A nil err is success.
func (h *HealthChecker) RecordWallet(walletID string, err error) {
	status := WalletStatus{FinishedAt: time.Now(), OK: err == nil}
	if err != nil {
		status.Error = err.Error()
	}

	h.mu.Lock()
	h.lastWallet[walletID] = status
	h.mu.Unlock()
}

// RecordCycle marks the end of a pass over every wallet.
func (h *HealthChecker) RecordCycle() {
	h.mu.Lock()
	h.cycles++
	h.lastCycle = time.Now()
	h.mu.Unlock()
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Uptime    string                  `json:"uptime"`
	Message   string                  `json:"message,omitempty"`
	Cycles    int64                   `json:"cycles"`
	LastCycle *time.Time              `json:"last_cycle,omitempty"`
	Wallets   map[string]WalletStatus `json:"wallets,omitempty"`
}

func (h *HealthChecker) snapshot(status string) HealthResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := HealthResponse{
		Status: status,
		Uptime: time.Since(h.startTime).String(),
		Cycles: h.cycles,
	}
	if !h.lastCycle.IsZero() {
		last := h.lastCycle
		resp.LastCycle = &last
	}
	if len(h.lastWallet) > 0 {
		resp.Wallets = make(map[string]WalletStatus, len(h.lastWallet))
		for id, s := range h.lastWallet {
			resp.Wallets[id] = s
		}
	}
	return resp
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.snapshot("healthy"))
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK once the scan loop has started, 503 before.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !h.ready.Load() {
			resp := h.snapshot("not_ready")
			resp.Message = "scan loop has not started"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, http.StatusOK, h.snapshot("ready"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
