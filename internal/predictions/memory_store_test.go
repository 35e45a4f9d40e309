package predictions

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func sampleRecord(i int, prob float64, fraud bool) *Record {
	return &Record{
		ID:             fmt.Sprintf("pred_%03d", i),
		TransactionID:  fmt.Sprintf("txn_%03d", i),
		User:           1001,
		Card:           1,
		Amount:         float64(10 + i),
		Merchant:       int64(700 + i%3),
		MerchantState:  "CA",
		MCC:            5411,
		IsFraud:        fraud,
		Probability:    prob,
		RiskLevel:      levelFor(prob),
		Recommendation: "ALLOW",
		ModelVersion:   "test-1",
		LatencyMS:      2.5,
		ScoredAt:       time.Now().Add(time.Duration(i) * time.Second),
	}
}

func levelFor(p float64) string {
	switch {
	case p >= 0.8:
		return "high"
	case p >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

func TestSaveAndRecent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Save(ctx, sampleRecord(i, 0.1, false)); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].ID != "pred_004" {
		t.Errorf("first record = %s, want newest (pred_004)", recs[0].ID)
	}
}

func TestSaveCopiesRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := sampleRecord(0, 0.1, false)
	if err := s.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Probability = 0.99

	recs, _ := s.Recent(ctx, 1)
	if recs[0].Probability != 0.1 {
		t.Error("store aliased the caller's record")
	}
}

func TestStatistics(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Save(ctx, sampleRecord(0, 0.1, false))
	s.Save(ctx, sampleRecord(1, 0.6, false))
	s.Save(ctx, sampleRecord(2, 0.9, true))
	s.Save(ctx, sampleRecord(3, 0.9, true))

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 4 || stats.FraudCount != 2 {
		t.Errorf("total/fraud = %d/%d", stats.Total, stats.FraudCount)
	}
	if stats.FraudRate != 0.5 {
		t.Errorf("fraud rate = %v", stats.FraudRate)
	}
	if stats.RiskLevels["high"] != 2 || stats.RiskLevels["medium"] != 1 || stats.RiskLevels["low"] != 1 {
		t.Errorf("risk levels = %v", stats.RiskLevels)
	}
}

func TestStatisticsEmpty(t *testing.T) {
	s := NewMemoryStore()
	stats, err := s.Statistics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.FraudRate != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAlertsFilterByProbability(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Save(ctx, sampleRecord(0, 0.2, false))
	s.Save(ctx, sampleRecord(1, 0.85, true))
	s.Save(ctx, sampleRecord(2, 0.79, false))
	s.Save(ctx, sampleRecord(3, 0.95, true))

	alerts, err := s.Alerts(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
	if alerts[0].ID != "pred_003" || alerts[1].ID != "pred_001" {
		t.Errorf("alert order = %s, %s", alerts[0].ID, alerts[1].ID)
	}
}

func TestHourlyStats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	early := sampleRecord(0, 0.9, true)
	early.ScoredAt = now.Add(-2 * time.Hour)
	late := sampleRecord(1, 0.1, false)
	late.ScoredAt = now
	ancient := sampleRecord(2, 0.1, false)
	ancient.ScoredAt = now.Add(-48 * time.Hour)

	s.Save(ctx, early)
	s.Save(ctx, late)
	s.Save(ctx, ancient)

	stats, err := s.HourlyStats(ctx, 24)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d hours, want 2", len(stats))
	}
	if !stats[0].Hour.Before(stats[1].Hour) {
		t.Error("hours not in ascending order")
	}
	if stats[0].Fraud != 1 {
		t.Errorf("early hour fraud = %d", stats[0].Fraud)
	}
}

func TestRiskDistribution(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Save(ctx, sampleRecord(0, 0.1, false))
	s.Save(ctx, sampleRecord(1, 0.1, false))
	s.Save(ctx, sampleRecord(2, 0.9, true))

	dist, err := s.RiskDistribution(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dist["low"] != 2 || dist["high"] != 1 {
		t.Errorf("distribution = %v", dist)
	}
}

func TestMerchantStats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		s.Save(ctx, sampleRecord(i, 0.1, i%2 == 0)) // merchants 700, 701, 702 twice each
	}

	stats, err := s.MerchantStats(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d merchants, want 2", len(stats))
	}
	for _, st := range stats {
		if st.Total != 2 {
			t.Errorf("merchant %d total = %d, want 2", st.Merchant, st.Total)
		}
		if st.AvgAmount <= 0 {
			t.Errorf("merchant %d avg amount = %v", st.Merchant, st.AvgAmount)
		}
	}
}

func TestMemoryCap(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < maxMemoryRecords+10; i++ {
		s.Save(ctx, sampleRecord(i%1000, 0.1, false))
	}

	s.mu.RLock()
	n := len(s.records)
	s.mu.RUnlock()
	if n != maxMemoryRecords {
		t.Errorf("stored %d records, cap is %d", n, maxMemoryRecords)
	}
}
