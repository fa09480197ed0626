package types

import "time"

// PredictionResult records whether a held outcome turned out to be the winner.
type PredictionResult string

const (
	PredictionSuccess PredictionResult = "success"
	PredictionFailed  PredictionResult = "failed"
)

// RedeemStatus is the persisted redemption state of a token.
type RedeemStatus string

const (
	RedeemPending RedeemStatus = "pending"
	RedeemSuccess RedeemStatus = "success"
	RedeemFailed  RedeemStatus = "failed"
	RedeemSkipped RedeemStatus = "skipped"
)

// TokenState is the durable verdict for one token of one wallet.
// Rows are unique on (WalletID, TokenID, ConditionID, OutcomeIndex) and are
// never deleted. A skipped row is final: the token is never submitted again.
type TokenState struct {
	WalletID            string
	TokenID             string
	ConditionID         string
	OutcomeIndex        int
	WinningOutcomeIndex *int
	MarketTitle         string
	PredictionResult    PredictionResult
	RedeemStatus        RedeemStatus
	RedeemTxHash        string
	CheckedAt           time.Time
	RedeemedAt          *time.Time
}

// RedemptionPath selects the contract a batch is redeemed through.
type RedemptionPath string

const (
	// PathCTF calls redeemPositions on the conditional tokens contract.
	PathCTF RedemptionPath = "ctf"
	// PathAdapter calls redeemPositions on the neg-risk adapter.
	PathAdapter RedemptionPath = "adapter"
)

// Flip returns the alternate path.
func (p RedemptionPath) Flip() RedemptionPath {
	if p == PathCTF {
		return PathAdapter
	}
	return PathCTF
}

// RedemptionBatch groups the tokens of one condition redeemed in a single
// transaction. It lives for one scan cycle only.
type RedemptionBatch struct {
	ConditionID string
	Path        RedemptionPath
	Tokens      []Position
	Title       string
	Slug        string
	Redeemable  bool
}

// Add appends a token unless it is already part of the batch.
func (b *RedemptionBatch) Add(p Position) bool {
	for i := range b.Tokens {
		if b.Tokens[i].TokenID == p.TokenID {
			return false
		}
	}
	b.Tokens = append(b.Tokens, p)
	if p.Redeemable {
		b.Redeemable = true
	}
	return true
}

// GroupByCondition aggregates tokens into one batch per condition on the
// given path. Batch order follows first appearance of each condition.
func GroupByCondition(tokens []Position, path RedemptionPath) []*RedemptionBatch {
	index := make(map[string]*RedemptionBatch)
	batches := make([]*RedemptionBatch, 0)

	for _, tok := range tokens {
		batch, ok := index[tok.ConditionID]
		if !ok {
			batch = &RedemptionBatch{
				ConditionID: tok.ConditionID,
				Path:        path,
				Title:       tok.Title,
				Slug:        tok.Slug,
			}
			index[tok.ConditionID] = batch
			batches = append(batches, batch)
		}
		batch.Add(tok)
	}

	return batches
}
