package predictions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// maxMemoryRecords caps the in-memory store so a long-running process
// without Postgres does not grow without bound.
const maxMemoryRecords = 10000

// MemoryStore is an in-memory Store for development and tests. Oldest
// records are dropped past the cap.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *rec
	s.records = append(s.records, &r)
	if len(s.records) > maxMemoryRecords {
		s.records = s.records[len(s.records)-maxMemoryRecords:]
	}
	return nil
}

// Recent returns the newest records first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*Record, 0, len(s.records)-start)
	for i := len(s.records) - 1; i >= start; i-- {
		r := *s.records[i]
		out = append(out, &r)
	}
	return out, nil
}

func (s *MemoryStore) Statistics(_ context.Context) (*Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Statistics{RiskLevels: make(map[string]int64)}
	var probSum, latSum float64
	for _, r := range s.records {
		stats.Total++
		if r.IsFraud {
			stats.FraudCount++
		}
		probSum += r.Probability
		latSum += r.LatencyMS
		stats.RiskLevels[r.RiskLevel]++
	}
	if stats.Total > 0 {
		stats.FraudRate = float64(stats.FraudCount) / float64(stats.Total)
		stats.AvgProbability = probSum / float64(stats.Total)
		stats.AvgLatencyMS = latSum / float64(stats.Total)
	}
	return stats, nil
}

// Alerts returns the newest high-probability records first.
func (s *MemoryStore) Alerts(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].Probability >= alertProbability {
			r := *s.records[i]
			out = append(out, &r)
		}
	}
	return out, nil
}

func (s *MemoryStore) HourlyStats(_ context.Context, hours int) ([]*HourlyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	byHour := make(map[time.Time]*HourlyStat)
	for _, r := range s.records {
		if r.ScoredAt.Before(cutoff) {
			continue
		}
		hour := r.ScoredAt.Truncate(time.Hour)
		st, ok := byHour[hour]
		if !ok {
			st = &HourlyStat{Hour: hour}
			byHour[hour] = st
		}
		st.Total++
		if r.IsFraud {
			st.Fraud++
		}
	}

	out := make([]*HourlyStat, 0, len(byHour))
	for _, st := range byHour {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out, nil
}

func (s *MemoryStore) RiskDistribution(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist := make(map[string]int64)
	for _, r := range s.records {
		dist[r.RiskLevel]++
	}
	return dist, nil
}

// MerchantStats returns merchants ordered by volume, busiest first.
func (s *MemoryStore) MerchantStats(_ context.Context, limit int) ([]*MerchantStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	byMerchant := make(map[int64]*MerchantStat)
	sums := make(map[int64]float64)
	for _, r := range s.records {
		st, ok := byMerchant[r.Merchant]
		if !ok {
			st = &MerchantStat{Merchant: r.Merchant}
			byMerchant[r.Merchant] = st
		}
		st.Total++
		if r.IsFraud {
			st.Fraud++
		}
		sums[r.Merchant] += r.Amount
	}

	out := make([]*MerchantStat, 0, len(byMerchant))
	for m, st := range byMerchant {
		st.AvgAmount = sums[m] / float64(st.Total)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
