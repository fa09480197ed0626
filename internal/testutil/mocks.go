package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
	"github.com/mselser95/polymarket-redeemer/internal/markets"
	"github.com/mselser95/polymarket-redeemer/internal/relayer"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// MockPositionSource replays a scripted sequence of position lists.
// After the script runs out the last entry repeats.
type MockPositionSource struct {
	mu     sync.Mutex
	script []PositionsResponse
	calls  int
}

// PositionsResponse is one scripted FetchPositions result.
type PositionsResponse struct {
	Positions []types.Position
	Err       error
}

// NewMockPositionSource creates a source that plays responses in order.
func NewMockPositionSource(responses ...PositionsResponse) *MockPositionSource {
	return &MockPositionSource{script: responses}
}

// FetchPositions returns the next scripted response.
func (m *MockPositionSource) FetchPositions(_ context.Context, _ string) ([]types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.script) == 0 {
		return nil, nil
	}
	i := m.calls
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	m.calls++

	resp := m.script[i]
	out := make([]types.Position, len(resp.Positions))
	copy(out, resp.Positions)
	return out, resp.Err
}

// Calls returns the number of FetchPositions calls.
func (m *MockPositionSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockMarketSource serves markets from memory.
type MockMarketSource struct {
	mu      sync.Mutex
	markets map[string]*types.Market
	errs    map[string]error
	calls   map[string]int
}

// NewMockMarketSource creates a market source holding markets.
func NewMockMarketSource(ms ...*types.Market) *MockMarketSource {
	m := &MockMarketSource{
		markets: make(map[string]*types.Market),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
	for _, market := range ms {
		m.markets[strings.ToLower(market.ConditionID)] = market
	}
	return m
}

// SetMarket adds or replaces a market.
func (m *MockMarketSource) SetMarket(market *types.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[strings.ToLower(market.ConditionID)] = market
	delete(m.errs, strings.ToLower(market.ConditionID))
}

// SetError makes lookups of conditionID fail with err.
func (m *MockMarketSource) SetError(conditionID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[strings.ToLower(conditionID)] = err
}

// FetchMarket returns the stored market or markets.ErrMarketNotFound.
func (m *MockMarketSource) FetchMarket(_ context.Context, conditionID, _ string) (*types.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(conditionID)
	m.calls[key]++

	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	market, ok := m.markets[key]
	if !ok {
		return nil, markets.ErrMarketNotFound
	}
	return market, nil
}

// Calls returns how often conditionID was looked up.
func (m *MockMarketSource) Calls(conditionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[strings.ToLower(conditionID)]
}

// MockRelayer records submitted calls and hands out sequential tx hashes.
type MockRelayer struct {
	mu        sync.Mutex
	submitted [][]relayer.Call
	failTo    map[string]error
	next      int
}

// NewMockRelayer creates a relayer that accepts every submission.
func NewMockRelayer() *MockRelayer {
	return &MockRelayer{failTo: make(map[string]error)}
}

// FailCallsTo makes submissions whose first call targets to fail with err.
func (m *MockRelayer) FailCallsTo(to string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTo[strings.ToLower(to)] = err
}

// Execute records calls and returns the next tx hash.
func (m *MockRelayer) Execute(_ context.Context, calls []relayer.Call) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(calls) == 0 {
		return "", errors.New("no calls")
	}
	if err, ok := m.failTo[strings.ToLower(calls[0].To.Hex())]; ok {
		return "", err
	}

	m.submitted = append(m.submitted, calls)
	m.next++
	return TxHash(m.next), nil
}

// Submitted returns every accepted submission in order.
func (m *MockRelayer) Submitted() [][]relayer.Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]relayer.Call, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// MockReceiptSource serves receipts by tx hash. Unknown hashes are not found.
type MockReceiptSource struct {
	mu       sync.Mutex
	receipts map[string]*chain.Receipt
	errs     map[string]error
	fallback *chain.Receipt
	calls    int
}

// NewMockReceiptSource creates an empty receipt source.
func NewMockReceiptSource() *MockReceiptSource {
	return &MockReceiptSource{
		receipts: make(map[string]*chain.Receipt),
		errs:     make(map[string]error),
	}
}

// SetStatus registers a receipt with status for txHash.
func (m *MockReceiptSource) SetStatus(txHash string, status uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[txHash] = &chain.Receipt{TxHash: txHash, Status: status, BlockNumber: 1}
}

// SetError makes lookups of txHash fail with err.
func (m *MockReceiptSource) SetError(txHash string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[txHash] = err
}

// SetDefaultStatus answers every unregistered hash with status.
func (m *MockReceiptSource) SetDefaultStatus(status uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &chain.Receipt{Status: status, BlockNumber: 1}
}

// Receipt returns the registered receipt for txHash.
func (m *MockReceiptSource) Receipt(_ context.Context, txHash string) (*chain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err, ok := m.errs[txHash]; ok {
		return nil, err
	}
	if r, ok := m.receipts[txHash]; ok {
		return r, nil
	}
	if m.fallback != nil {
		r := *m.fallback
		r.TxHash = txHash
		return &r, nil
	}
	return nil, chain.ErrReceiptNotFound
}

// Calls returns the number of Receipt calls.
func (m *MockReceiptSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockGammaAPI is a mock HTTP server that simulates the Gamma markets API.
type MockGammaAPI struct {
	*httptest.Server
	mu      sync.RWMutex
	markets []map[string]interface{}
}

// NewMockGammaAPI creates a new mock Gamma API server serving raw markets.
func NewMockGammaAPI(ms ...map[string]interface{}) *MockGammaAPI {
	mock := &MockGammaAPI{markets: ms}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")

		// /markets/slug/{slug}
		if strings.HasPrefix(r.URL.Path, "/markets/slug/") {
			slug := strings.TrimPrefix(r.URL.Path, "/markets/slug/")
			for _, m := range mock.markets {
				if m["slug"] == slug {
					_ = json.NewEncoder(w).Encode(m)
					return
				}
			}
			http.NotFound(w, r)
			return
		}

		// /markets?condition_ids=... returns a direct array
		if r.URL.Path == "/markets" {
			want := strings.ToLower(r.URL.Query().Get("condition_ids"))
			out := make([]map[string]interface{}, 0)
			for _, m := range mock.markets {
				if strings.ToLower(fmt.Sprint(m["conditionId"])) == want {
					out = append(out, m)
				}
			}
			_ = json.NewEncoder(w).Encode(out)
			return
		}

		http.NotFound(w, r)
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// AddMarket adds a raw market to the mock API.
func (m *MockGammaAPI) AddMarket(market map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = append(m.markets, market)
}

// MockDataAPI is a mock HTTP server that simulates the Data API positions
// endpoint for a single user.
type MockDataAPI struct {
	*httptest.Server
	mu        sync.RWMutex
	positions map[string][]map[string]interface{}
}

// NewMockDataAPI creates an empty mock Data API server.
func NewMockDataAPI() *MockDataAPI {
	mock := &MockDataAPI{positions: make(map[string][]map[string]interface{})}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/positions" {
			http.NotFound(w, r)
			return
		}

		mock.mu.RLock()
		defer mock.mu.RUnlock()

		user := strings.ToLower(r.URL.Query().Get("user"))
		out := mock.positions[user]
		if out == nil || r.URL.Query().Get("offset") != "0" {
			out = []map[string]interface{}{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// SetPositions replaces the positions listed for user.
func (m *MockDataAPI) SetPositions(user string, positions ...types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw := make([]map[string]interface{}, 0, len(positions))
	for _, p := range positions {
		raw = append(raw, map[string]interface{}{
			"asset":        p.TokenID,
			"conditionId":  p.ConditionID,
			"outcomeIndex": p.OutcomeIndex,
			"title":        p.Title,
			"slug":         p.Slug,
			"redeemable":   p.Redeemable,
			"size":         p.Size,
		})
	}
	m.positions[strings.ToLower(user)] = raw
}
