package feature

// Features maps feature name to value for one transaction.
type Features map[string]float64

// Vector projects the features onto a fixed column order. Names the
// assembler did not produce come out as 0 so the vector length always
// matches the classifier's schema.
func (f Features) Vector(columns []string) []float64 {
	v := make([]float64, len(columns))
	for i, c := range columns {
		v[i] = f[c]
	}
	return v
}

// DefaultColumns is the full schema in training order. Model artifacts
// carry their own column list; this one serves tests and artifacts built
// before schema versioning.
func DefaultColumns() []string {
	return []string{
		"hour",
		"day_of_week",
		"day_of_month",
		"month",
		"year",
		"is_weekend",
		"hour_sin",
		"hour_cos",
		"dow_sin",
		"dow_cos",
		"amount_log",
		"is_round_amount",
		"is_refund",
		"amount_vs_user_avg",
		"amount_vs_mcc_avg",
		"time_since_last_txn",
		"txn_count_1h",
		"txn_count_24h",
		"txn_count_7d",
		"amount_sum_24h",
		"is_online",
		"is_chip_txn",
		"is_swipe_txn",
		"is_online_txn",
		"merchant_txn_count",
		"mcc_frequency",
		"is_first_merchant_txn",
		"user_merchant_txn_count",
		"is_international",
		"is_high_risk_state",
		"is_primary_state",
		"missing_geo_data",
		"state_txn_count",
		"user_card_count",
		"user_merchant_diversity",
		"user_mcc_diversity",
		"user_avg_amount",
		"user_txn_per_day",
		"card_txn_count",
		"card_on_dark_web",
		"card_has_chip",
		"chip_mismatch",
		"is_visa",
		"is_mastercard",
		"is_debit",
		"is_credit",
	}
}
