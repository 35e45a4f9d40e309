package ledger

import (
	"testing"
	"time"
)

func TestRecordAndHistory(t *testing.T) {
	l := New()
	key := Key{User: 1, Card: 1}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		l.Record(key, Record{Timestamp: base.Add(time.Duration(i) * time.Minute), Amount: 10})
	}

	history := l.History(key)
	if len(history) != 5 {
		t.Fatalf("expected 5 records, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Errorf("history out of order at %d", i)
		}
	}
}

func TestHistoryEmptyForNewKey(t *testing.T) {
	l := New()
	if h := l.History(Key{User: 99, Card: 99}); len(h) != 0 {
		t.Errorf("expected empty history, got %d records", len(h))
	}
}

func TestRetentionPrunesOldEntries(t *testing.T) {
	l := New()
	key := Key{User: 1, Card: 2}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	l.Record(key, Record{Timestamp: base, Amount: 1})
	l.Record(key, Record{Timestamp: base.Add(3 * 24 * time.Hour), Amount: 2})
	// 8 days after base: the first record falls outside retention.
	l.Record(key, Record{Timestamp: base.Add(8 * 24 * time.Hour), Amount: 3})

	history := l.History(key)
	if len(history) != 2 {
		t.Fatalf("expected 2 records after prune, got %d", len(history))
	}
	if history[0].Amount != 2 {
		t.Errorf("expected oldest surviving record amount 2, got %f", history[0].Amount)
	}

	// Everything in the window is within retention of the newest entry.
	newest := history[len(history)-1].Timestamp
	for _, rec := range history {
		if rec.Timestamp.Before(newest.Add(-Retention)) {
			t.Errorf("record at %v older than retention boundary", rec.Timestamp)
		}
	}
}

func TestOutOfOrderInsertKeepsAscending(t *testing.T) {
	l := New()
	key := Key{User: 4, Card: 1}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	l.Record(key, Record{Timestamp: base, Amount: 1})
	l.Record(key, Record{Timestamp: base.Add(2 * time.Hour), Amount: 3})
	// Arrives late, belongs between the two.
	l.Record(key, Record{Timestamp: base.Add(time.Hour), Amount: 2})

	history := l.History(key)
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}
	for i, want := range []float64{1, 2, 3} {
		if history[i].Amount != want {
			t.Errorf("position %d: expected amount %f, got %f", i, want, history[i].Amount)
		}
	}
}

func TestWindowStats(t *testing.T) {
	l := New()
	key := Key{User: 7, Card: 3}
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

	l.Record(key, Record{Timestamp: now.Add(-30 * time.Minute), Amount: 20})
	l.Record(key, Record{Timestamp: now.Add(-2 * time.Hour), Amount: 45.50})
	l.Record(key, Record{Timestamp: now.Add(-3 * 24 * time.Hour), Amount: 100})

	stats := l.WindowStats(key, now, []time.Duration{time.Hour, 24 * time.Hour, 7 * 24 * time.Hour})

	if stats[0].Count != 1 || stats[0].AmountSum != 20 {
		t.Errorf("1h window: got count=%d sum=%f", stats[0].Count, stats[0].AmountSum)
	}
	if stats[1].Count != 2 || stats[1].AmountSum != 65.50 {
		t.Errorf("24h window: got count=%d sum=%f", stats[1].Count, stats[1].AmountSum)
	}
	if stats[2].Count != 3 {
		t.Errorf("7d window: got count=%d", stats[2].Count)
	}
}

func TestHistoryIdempotentRead(t *testing.T) {
	l := New()
	key := Key{User: 2, Card: 2}
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.Record(key, Record{Timestamp: base, Amount: 5})
	l.Record(key, Record{Timestamp: base.Add(time.Minute), Amount: 6})

	a := l.History(key)
	b := l.History(key)
	if len(a) != len(b) {
		t.Fatalf("repeated reads differ in length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("repeated reads differ at %d: %+v vs %+v", i, a[i], b[i])
		}
	}

	// Mutating the returned slice must not touch ledger state.
	a[0].Amount = 999
	if c := l.History(key); c[0].Amount != 5 {
		t.Error("History returned a slice aliasing internal state")
	}
}

func TestLast(t *testing.T) {
	l := New()
	key := Key{User: 3, Card: 1}

	if _, ok := l.Last(key); ok {
		t.Error("Last on empty key should report false")
	}

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.Record(key, Record{Timestamp: base, Amount: 1})
	l.Record(key, Record{Timestamp: base.Add(time.Hour), Amount: 2})

	last, ok := l.Last(key)
	if !ok || last.Amount != 2 {
		t.Errorf("expected last amount 2, got %+v ok=%v", last, ok)
	}
}

func TestStats(t *testing.T) {
	l := New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.Record(Key{User: 1, Card: 1}, Record{Timestamp: base, Amount: 1})
	l.Record(Key{User: 1, Card: 1}, Record{Timestamp: base.Add(time.Minute), Amount: 1})
	l.Record(Key{User: 2, Card: 1}, Record{Timestamp: base, Amount: 1})

	s := l.Stats()
	if s.EntitiesTracked != 2 {
		t.Errorf("expected 2 entities, got %d", s.EntitiesTracked)
	}
	if s.TotalHistoryCount != 3 {
		t.Errorf("expected 3 history entries, got %d", s.TotalHistoryCount)
	}
}
