package testutil

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// ConditionID returns a well-formed condition id derived from n.
func ConditionID(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

// TxHash returns a well-formed transaction hash derived from n.
func TxHash(n int) string {
	return fmt.Sprintf("0x%064x", 0xbeef0000+n)
}

// CreateTestPosition creates a redeemable position of size 10.
func CreateTestPosition(tokenID, conditionID string, outcomeIndex int) types.Position {
	return types.Position{
		TokenID:      tokenID,
		ConditionID:  conditionID,
		OutcomeIndex: outcomeIndex,
		Title:        "Test market " + conditionID[len(conditionID)-4:],
		Slug:         "test-market-" + conditionID[len(conditionID)-4:],
		Redeemable:   true,
		Size:         10,
	}
}

// CreateMarketJSON builds a raw Gamma market payload. Pass winner < 0 for
// an open market; otherwise the market is closed, resolved and prices the
// winner at exactly 1.
func CreateMarketJSON(conditionID string, winner int, endDate time.Time) map[string]interface{} {
	prices := []string{"0.5", "0.5"}
	closed := false
	status := ""
	if winner >= 0 {
		prices = []string{"0", "0"}
		prices[winner] = "1"
		closed = true
		status = "resolved"
	}

	encoded, _ := json.Marshal(prices)

	return map[string]interface{}{
		"id":                  "m-" + conditionID[len(conditionID)-4:],
		"conditionId":         conditionID,
		"slug":                "test-market-" + conditionID[len(conditionID)-4:],
		"question":            "Test market " + conditionID[len(conditionID)-4:] + "?",
		"closed":              closed,
		"endDate":             endDate.UTC().Format(time.RFC3339),
		"umaResolutionStatus": status,
		"outcomes":            `["Yes","No"]`,
		"outcomePrices":       string(encoded),
	}
}

// CreateTestMarket decodes CreateMarketJSON into a market snapshot whose
// end date lies one day in the past.
func CreateTestMarket(conditionID string, winner int) *types.Market {
	return DecodeMarket(CreateMarketJSON(conditionID, winner, time.Now().Add(-24*time.Hour)))
}

// DecodeMarket runs a raw payload through the market decoder.
func DecodeMarket(raw map[string]interface{}) *types.Market {
	data, err := json.Marshal(raw)
	if err != nil {
		panic(err)
	}
	var m types.Market
	if err := json.Unmarshal(data, &m); err != nil {
		panic(err)
	}
	return &m
}
