package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS redeem_records (
		id                    BIGSERIAL PRIMARY KEY,
		wallet_id             TEXT NOT NULL,
		token_id              TEXT NOT NULL,
		condition_id          TEXT NOT NULL,
		outcome_index         INTEGER NOT NULL,
		winning_outcome_index INTEGER,
		market_title          TEXT,
		prediction_result     TEXT NOT NULL CHECK (prediction_result IN ('success', 'failed')),
		redeem_status         TEXT NOT NULL DEFAULT 'pending'
			CHECK (redeem_status IN ('pending', 'success', 'failed', 'skipped')),
		redeem_tx_hash        TEXT,
		checked_at            TIMESTAMPTZ NOT NULL,
		redeemed_at           TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (wallet_id, token_id, condition_id, outcome_index)
	)
`

const createStatusIndexSQL = `
	CREATE INDEX IF NOT EXISTS idx_redeem_records_wallet_status
		ON redeem_records (wallet_id, redeem_status)
`

// Skipped rows are terminal, so the update is guarded on the stored status.
const upsertTokenStateSQL = `
	INSERT INTO redeem_records (
		wallet_id, token_id, condition_id, outcome_index,
		winning_outcome_index, market_title, prediction_result,
		redeem_status, redeem_tx_hash, checked_at, redeemed_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	)
	ON CONFLICT (wallet_id, token_id, condition_id, outcome_index) DO UPDATE SET
		winning_outcome_index = EXCLUDED.winning_outcome_index,
		market_title          = EXCLUDED.market_title,
		prediction_result     = EXCLUDED.prediction_result,
		redeem_status         = EXCLUDED.redeem_status,
		redeem_tx_hash        = EXCLUDED.redeem_tx_hash,
		checked_at            = EXCLUDED.checked_at,
		redeemed_at           = EXCLUDED.redeemed_at
	WHERE redeem_records.redeem_status <> 'skipped'
`

const skippedTokensSQL = `
	SELECT DISTINCT token_id
	FROM redeem_records
	WHERE wallet_id = $1 AND redeem_status = 'skipped'
`

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage opens and pings a PostgreSQL connection.
func NewPostgresStorage(ctx context.Context, cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// EnsureSchema creates redeem_records and its status index.
func (p *PostgresStorage) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createTableSQL, createStatusIndexSQL} {
		_, err := p.db.ExecContext(ctx, stmt)
		if err != nil {
			StorageErrorsTotal.WithLabelValues("ensure-schema").Inc()
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	p.logger.Debug("redeem-records-schema-ready")
	return nil
}

// UpsertTokenState writes state, updating the existing row for its key.
func (p *PostgresStorage) UpsertTokenState(ctx context.Context, state *types.TokenState) error {
	var winning sql.NullInt64
	if state.WinningOutcomeIndex != nil {
		winning = sql.NullInt64{Int64: int64(*state.WinningOutcomeIndex), Valid: true}
	}

	var redeemedAt sql.NullTime
	if state.RedeemedAt != nil {
		redeemedAt = sql.NullTime{Time: *state.RedeemedAt, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, upsertTokenStateSQL,
		state.WalletID,
		state.TokenID,
		state.ConditionID,
		state.OutcomeIndex,
		winning,
		sql.NullString{String: state.MarketTitle, Valid: state.MarketTitle != ""},
		string(state.PredictionResult),
		string(state.RedeemStatus),
		sql.NullString{String: state.RedeemTxHash, Valid: state.RedeemTxHash != ""},
		state.CheckedAt,
		redeemedAt,
	)
	if err != nil {
		StorageErrorsTotal.WithLabelValues("upsert").Inc()
		return fmt.Errorf("upsert token state: %w", err)
	}

	TokenStateWritesTotal.WithLabelValues(string(state.RedeemStatus)).Inc()

	p.logger.Debug("token-state-stored",
		zap.String("wallet", state.WalletID),
		zap.String("token-id", state.TokenID),
		zap.String("status", string(state.RedeemStatus)))

	return nil
}

// SkippedTokens returns the wallet's skipped token ids.
func (p *PostgresStorage) SkippedTokens(ctx context.Context, walletID string) (map[string]struct{}, error) {
	rows, err := p.db.QueryContext(ctx, skippedTokensSQL, walletID)
	if err != nil {
		StorageErrorsTotal.WithLabelValues("skipped-tokens").Inc()
		return nil, fmt.Errorf("query skipped tokens: %w", err)
	}
	defer rows.Close()

	skipped := make(map[string]struct{})
	for rows.Next() {
		var tokenID string
		err = rows.Scan(&tokenID)
		if err != nil {
			StorageErrorsTotal.WithLabelValues("skipped-tokens").Inc()
			return nil, fmt.Errorf("scan skipped token: %w", err)
		}
		skipped[tokenID] = struct{}{}
	}

	err = rows.Err()
	if err != nil {
		StorageErrorsTotal.WithLabelValues("skipped-tokens").Inc()
		return nil, fmt.Errorf("iterate skipped tokens: %w", err)
	}

	return skipped, nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
