package types

import (
	"bytes"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Market is a Gamma API market snapshot.
// Every field is optional: Gamma payloads differ between endpoints and over
// time, so decoding never fails on a field with an unexpected shape.
// Unmodeled fields stay reachable through Raw.
type Market struct {
	ID                 string
	ConditionID        string
	Slug               string
	Question           string
	ResolutionStatus   string // umaResolutionStatus
	Closed             bool   // true only when the payload carries a JSON true
	EndDate            string
	OutcomePrices      []string // textual values, parsed on demand
	Outcomes           []Outcome
	ResolvedOutcome    json.RawMessage
	ResolvedBy         json.RawMessage
	Resolution         *Resolution
	ParentCollectionID string

	Raw map[string]json.RawMessage
}

// Outcome is one entry of a market's outcome list.
// Gamma usually sends plain labels; some payloads carry objects with flags.
type Outcome struct {
	Label    string
	Resolved bool
	Winning  bool
}

// Resolution is the optional resolution object of a market.
type Resolution struct {
	Outcome json.RawMessage `json:"outcome"`
}

// UnmarshalJSON decodes a market leniently.
func (m *Market) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Market{Raw: raw}
	m.ID = rawString(raw["id"])
	m.ConditionID = rawString(raw["conditionId"])
	m.Slug = rawString(raw["slug"])
	m.Question = rawString(raw["question"])
	m.ResolutionStatus = rawString(raw["umaResolutionStatus"])
	m.EndDate = rawString(raw["endDate"])
	m.Closed = bytes.Equal(bytes.TrimSpace(raw["closed"]), []byte("true"))
	m.OutcomePrices = decodePriceList(raw["outcomePrices"])
	m.Outcomes = decodeOutcomes(raw["outcomes"])
	m.ResolvedOutcome = nonNull(raw["resolvedOutcome"])
	m.ResolvedBy = nonNull(raw["resolvedBy"])

	if res := nonNull(raw["resolution"]); res != nil {
		var r Resolution
		if err := json.Unmarshal(res, &r); err == nil {
			r.Outcome = nonNull(r.Outcome)
			m.Resolution = &r
		}
	}

	m.ParentCollectionID = rawString(raw["parentCollectionId"])
	if m.ParentCollectionID == "" {
		m.ParentCollectionID = rawString(raw["parentCollectionID"])
	}

	return nil
}

// Prices returns the outcome prices that parse as numbers, keyed by outcome index.
func (m *Market) Prices() map[int]float64 {
	prices := make(map[int]float64, len(m.OutcomePrices))
	for i, p := range m.OutcomePrices {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			continue
		}
		prices[i] = v
	}
	return prices
}

// HasWinningPrice reports whether any outcome price is exactly 1.0.
func (m *Market) HasWinningPrice() bool {
	for _, p := range m.Prices() {
		if p == 1.0 {
			return true
		}
	}
	return false
}

// decodePriceList accepts ["1","0"], [1,0] and the text-encoded "[\"1\",\"0\"]".
func decodePriceList(raw json.RawMessage) []string {
	raw = nonNull(raw)
	if raw == nil {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		raw = json.RawMessage(text)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, rawString(item))
	}
	return out
}

func decodeOutcomes(raw json.RawMessage) []Outcome {
	raw = nonNull(raw)
	if raw == nil {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		raw = json.RawMessage(text)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]Outcome, 0, len(items))
	for _, item := range items {
		var obj struct {
			Outcome  string `json:"outcome"`
			Name     string `json:"name"`
			Resolved bool   `json:"resolved"`
			Winning  bool   `json:"winning"`
		}
		if err := json.Unmarshal(item, &obj); err == nil {
			label := obj.Outcome
			if label == "" {
				label = obj.Name
			}
			out = append(out, Outcome{Label: label, Resolved: obj.Resolved, Winning: obj.Winning})
			continue
		}
		out = append(out, Outcome{Label: rawString(item)})
	}
	return out
}

// rawString renders a JSON scalar as text. Strings are unquoted, numbers and
// booleans keep their literal form, null and composites become "".
func rawString(raw json.RawMessage) string {
	raw = nonNull(raw)
	if raw == nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return ""
	}
	return string(trimmed)
}

func nonNull(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}

// CoerceInt converts a JSON scalar into an integer the way a loose
// int(...) cast would: integral numbers, numeric strings and booleans.
// Anything else reports false.
func CoerceInt(raw json.RawMessage) (int, bool) {
	raw = nonNull(raw)
	if raw == nil {
		return 0, false
	}

	switch string(raw) {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return v, true
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return int(f), true
}
