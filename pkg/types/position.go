package types

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Position is one holding of a wallet as reported by the Data API.
type Position struct {
	TokenID      string
	ConditionID  string
	OutcomeIndex int // -1 when the payload carries no usable index
	Title        string
	Slug         string
	Redeemable   bool
	Size         float64
}

// UnmarshalJSON decodes a Data API position, tolerating the field aliases
// and loose typing seen across API versions.
func (p *Position) UnmarshalJSON(data []byte) error {
	var aux struct {
		Asset        string          `json:"asset"`
		TokenID      string          `json:"token_id"`
		ConditionID  string          `json:"conditionId"`
		OutcomeIndex json.RawMessage `json:"outcomeIndex"`
		Title        string          `json:"title"`
		Slug         string          `json:"slug"`
		EventSlug    string          `json:"eventSlug"`
		Redeemable   bool            `json:"redeemable"`
		Size         json.RawMessage `json:"size"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*p = Position{
		TokenID:      aux.Asset,
		ConditionID:  aux.ConditionID,
		OutcomeIndex: -1,
		Title:        aux.Title,
		Slug:         aux.Slug,
		Redeemable:   aux.Redeemable,
	}
	if p.TokenID == "" {
		p.TokenID = aux.TokenID
	}
	if p.Slug == "" {
		p.Slug = aux.EventSlug
	}
	if p.Title == "" {
		p.Title = p.Slug
	}
	if idx, ok := CoerceInt(aux.OutcomeIndex); ok && idx >= 0 {
		p.OutcomeIndex = idx
	}
	if size, ok := coerceFloat(aux.Size); ok {
		p.Size = size
	}

	return nil
}

// MarshalJSON writes the Data API field names back out.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Asset        string  `json:"asset"`
		ConditionID  string  `json:"conditionId"`
		OutcomeIndex int     `json:"outcomeIndex"`
		Title        string  `json:"title"`
		Slug         string  `json:"slug"`
		Redeemable   bool    `json:"redeemable"`
		Size         float64 `json:"size"`
	}{p.TokenID, p.ConditionID, p.OutcomeIndex, p.Title, p.Slug, p.Redeemable, p.Size})
}

func coerceFloat(raw json.RawMessage) (float64, bool) {
	raw = nonNull(raw)
	if raw == nil {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
