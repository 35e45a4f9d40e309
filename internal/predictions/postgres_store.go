package predictions

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists scoring decisions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the predictions table if it doesn't exist. The goose
// migrations under migrations/ are the canonical history; this exists so
// tests and fresh dev databases work without running the migrate binary.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS predictions (
			id              VARCHAR(36) PRIMARY KEY,
			transaction_id  VARCHAR(36) NOT NULL,
			user_id         BIGINT NOT NULL,
			card_id         BIGINT NOT NULL,
			amount          NUMERIC(12,2) NOT NULL,
			merchant        BIGINT NOT NULL,
			merchant_city   TEXT NOT NULL DEFAULT '',
			merchant_state  TEXT NOT NULL DEFAULT '',
			mcc             INTEGER NOT NULL DEFAULT 0,
			is_fraud        BOOLEAN NOT NULL,
			probability     NUMERIC(5,4) NOT NULL CHECK (probability >= 0 AND probability <= 1),
			risk_level      VARCHAR(10) NOT NULL CHECK (risk_level IN ('low', 'medium', 'high')),
			recommendation  VARCHAR(10) NOT NULL,
			model_version   TEXT NOT NULL DEFAULT '',
			latency_ms      NUMERIC(10,3) NOT NULL DEFAULT 0,
			scored_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_predictions_scored_at
			ON predictions (scored_at DESC);

		CREATE INDEX IF NOT EXISTS idx_predictions_alerts
			ON predictions (scored_at DESC) WHERE probability >= 0.8;

		CREATE INDEX IF NOT EXISTS idx_predictions_merchant
			ON predictions (merchant);
	`)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (
			id, transaction_id, user_id, card_id, amount, merchant,
			merchant_city, merchant_state, mcc, is_fraud, probability,
			risk_level, recommendation, model_version, latency_ms, scored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		rec.ID, rec.TransactionID, rec.User, rec.Card, rec.Amount, rec.Merchant,
		rec.MerchantCity, rec.MerchantState, rec.MCC, rec.IsFraud, rec.Probability,
		rec.RiskLevel, rec.Recommendation, rec.ModelVersion, rec.LatencyMS, rec.ScoredAt,
	)
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	return nil
}

const recordColumns = `
	id, transaction_id, user_id, card_id, amount, merchant,
	merchant_city, merchant_state, mcc, is_fraud, probability,
	risk_level, recommendation, model_version, latency_ms, scored_at`

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM predictions
		ORDER BY scored_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent predictions: %w", err)
	}
	return scanRecords(rows)
}

func (s *PostgresStore) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{RiskLevels: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_fraud),
		       COALESCE(AVG(probability), 0),
		       COALESCE(AVG(latency_ms), 0)
		FROM predictions
	`).Scan(&stats.Total, &stats.FraudCount, &stats.AvgProbability, &stats.AvgLatencyMS)
	if err != nil {
		return nil, fmt.Errorf("prediction statistics: %w", err)
	}
	if stats.Total > 0 {
		stats.FraudRate = float64(stats.FraudCount) / float64(stats.Total)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT risk_level, COUNT(*) FROM predictions GROUP BY risk_level
	`)
	if err != nil {
		return nil, fmt.Errorf("risk level counts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		stats.RiskLevels[level] = count
	}
	return stats, rows.Err()
}

func (s *PostgresStore) Alerts(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM predictions
		WHERE probability >= $1
		ORDER BY scored_at DESC
		LIMIT $2
	`, alertProbability, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return scanRecords(rows)
}

func (s *PostgresStore) HourlyStats(ctx context.Context, hours int) ([]*HourlyStat, error) {
	if hours <= 0 {
		hours = 24
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('hour', scored_at) AS hour,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE is_fraud)
		FROM predictions
		WHERE scored_at >= NOW() - make_interval(hours => $1)
		GROUP BY hour
		ORDER BY hour
	`, hours)
	if err != nil {
		return nil, fmt.Errorf("hourly stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*HourlyStat
	for rows.Next() {
		var st HourlyStat
		if err := rows.Scan(&st.Hour, &st.Total, &st.Fraud); err != nil {
			return nil, err
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RiskDistribution(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT risk_level, COUNT(*) FROM predictions GROUP BY risk_level
	`)
	if err != nil {
		return nil, fmt.Errorf("risk distribution: %w", err)
	}
	defer func() { _ = rows.Close() }()

	dist := make(map[string]int64)
	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		dist[level] = count
	}
	return dist, rows.Err()
}

func (s *PostgresStore) MerchantStats(ctx context.Context, limit int) ([]*MerchantStat, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT merchant,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE is_fraud),
		       COALESCE(AVG(amount), 0)
		FROM predictions
		GROUP BY merchant
		ORDER BY COUNT(*) DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("merchant stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*MerchantStat
	for rows.Next() {
		var st MerchantStat
		if err := rows.Scan(&st.Merchant, &st.Total, &st.Fraud, &st.AvgAmount); err != nil {
			return nil, err
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		var r Record
		var scoredAt time.Time
		if err := rows.Scan(
			&r.ID, &r.TransactionID, &r.User, &r.Card, &r.Amount, &r.Merchant,
			&r.MerchantCity, &r.MerchantState, &r.MCC, &r.IsFraud, &r.Probability,
			&r.RiskLevel, &r.Recommendation, &r.ModelVersion, &r.LatencyMS, &scoredAt,
		); err != nil {
			return nil, err
		}
		r.ScoredAt = scoredAt
		out = append(out, &r)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
