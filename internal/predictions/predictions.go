// Package predictions persists scoring decisions and serves the aggregate
// views the dashboard reads.
package predictions

import (
	"context"
	"time"
)

// Record is one persisted scoring decision.
type Record struct {
	ID             string    `json:"id"`
	TransactionID  string    `json:"transaction_id"`
	User           int64     `json:"user"`
	Card           int64     `json:"card"`
	Amount         float64   `json:"amount"`
	Merchant       int64     `json:"merchant"`
	MerchantCity   string    `json:"merchant_city"`
	MerchantState  string    `json:"merchant_state"`
	MCC            int       `json:"mcc"`
	IsFraud        bool      `json:"is_fraud"`
	Probability    float64   `json:"probability"`
	RiskLevel      string    `json:"risk_level"`
	Recommendation string    `json:"recommendation"`
	ModelVersion   string    `json:"model_version"`
	LatencyMS      float64   `json:"latency_ms"`
	ScoredAt       time.Time `json:"scored_at"`
}

// Statistics summarizes everything scored so far.
type Statistics struct {
	Total          int64            `json:"total_predictions"`
	FraudCount     int64            `json:"fraud_count"`
	FraudRate      float64          `json:"fraud_rate"`
	AvgProbability float64          `json:"avg_probability"`
	AvgLatencyMS   float64          `json:"avg_latency_ms"`
	RiskLevels     map[string]int64 `json:"risk_levels"`
}

// HourlyStat is one hour's scoring volume.
type HourlyStat struct {
	Hour  time.Time `json:"hour"`
	Total int64     `json:"total"`
	Fraud int64     `json:"fraud"`
}

// MerchantStat aggregates decisions per merchant.
type MerchantStat struct {
	Merchant  int64   `json:"merchant"`
	Total     int64   `json:"total"`
	Fraud     int64   `json:"fraud"`
	AvgAmount float64 `json:"avg_amount"`
}

// alertProbability is the floor above which a record counts as an alert.
const alertProbability = 0.8

// Store persists scoring decisions. Save is called off the request path, so
// implementations may be slow without affecting scoring latency.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]*Record, error)
	Statistics(ctx context.Context) (*Statistics, error)
	Alerts(ctx context.Context, limit int) ([]*Record, error)
	HourlyStats(ctx context.Context, hours int) ([]*HourlyStat, error)
	RiskDistribution(ctx context.Context) (map[string]int64, error)
	MerchantStats(ctx context.Context, limit int) ([]*MerchantStat, error)
}
