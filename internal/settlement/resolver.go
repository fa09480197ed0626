// Package settlement decides whether a market has settled and which outcome won.
package settlement

import (
	"strings"
	"time"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// Resolution is the verdict for one market snapshot.
type Resolution struct {
	Settled        bool
	WinningOutcome int
	HasWinner      bool
}

// Resolver evaluates market snapshots. It is stateless apart from its clock.
type Resolver struct {
	now func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// New creates a resolver using the wall clock unless overridden.
func New(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns both the settlement and winner verdicts for a market.
// A nil market is never settled.
func (r *Resolver) Resolve(m *types.Market) Resolution {
	if m == nil {
		return Resolution{WinningOutcome: -1}
	}

	res := Resolution{Settled: r.IsSettled(m), WinningOutcome: -1}
	if idx, ok := r.WinningOutcomeIndex(m); ok {
		res.WinningOutcome = idx
		res.HasWinner = true
	}
	return res
}

// IsSettled applies the settlement rules in order:
//  1. the resolution status says "resolved" (any case)
//  2. the market is closed and its end date has passed
//  3. the end date has passed and some outcome trades at exactly 1.0
//
// A missing or unparseable end date never satisfies rules 2 or 3.
func (r *Resolver) IsSettled(m *types.Market) bool {
	if m == nil {
		return false
	}

	if strings.EqualFold(strings.TrimSpace(m.ResolutionStatus), "resolved") {
		return true
	}

	end, ok := ParseEndDate(m.EndDate)
	if !ok || !end.Before(r.now()) {
		return false
	}

	if m.Closed {
		return true
	}

	return m.HasWinningPrice()
}

// WinningOutcomeIndex returns the winning outcome index from the first
// signal that yields one:
//
//	(a) an outcome price of exactly 1.0
//	(b) the first outcome object flagged resolved or winning
//	(c) resolvedOutcome
//	(d) resolvedBy
//	(e) resolution.outcome
//
// A value that does not coerce to an integer is ignored.
func (r *Resolver) WinningOutcomeIndex(m *types.Market) (int, bool) {
	if m == nil {
		return -1, false
	}

	prices := m.Prices()
	for i := range m.OutcomePrices {
		if p, ok := prices[i]; ok && p == 1.0 {
			return i, true
		}
	}

	for i, o := range m.Outcomes {
		if o.Resolved || o.Winning {
			return i, true
		}
	}

	if idx, ok := types.CoerceInt(m.ResolvedOutcome); ok {
		return idx, true
	}

	if idx, ok := types.CoerceInt(m.ResolvedBy); ok {
		return idx, true
	}

	if m.Resolution != nil {
		if idx, ok := types.CoerceInt(m.Resolution.Outcome); ok {
			return idx, true
		}
	}

	return -1, false
}

var endDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseEndDate parses an ISO-8601 end date. Values without a zone are UTC.
func ParseEndDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range endDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
