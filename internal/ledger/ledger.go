// Package ledger maintains bounded per-entity transaction history for
// velocity analysis.
//
// Each (user, card) pair owns an ordered window of its recent transactions.
// Windows keep 7 days of history relative to the newest recorded entry and
// are pruned on every insert. There is no hard size cap: a burst of traffic
// for one key grows its window until the retention boundary catches up.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Retention is how long entries stay in a window, measured against the
// newest recorded timestamp for that key.
const Retention = 7 * 24 * time.Hour

// Key identifies the entity scope for history and velocity: one user
// using one card.
type Key struct {
	User int64
	Card int64
}

// String renders the key for locking and logging.
func (k Key) String() string {
	return fmt.Sprintf("%d_%d", k.User, k.Card)
}

// Record is a single transaction as the ledger stores it. Immutable once
// recorded.
type Record struct {
	Timestamp time.Time
	Amount    float64
	Merchant  int64
	MCC       int
}

// WindowStat summarizes one trailing window of a key's history.
type WindowStat struct {
	Window    time.Duration
	Count     int
	AmountSum float64
}

// Stats is an observability snapshot of the whole ledger.
type Stats struct {
	EntitiesTracked   int   `json:"entities_tracked"`
	TotalHistoryCount int64 `json:"total_history_entries"`
}

// Ledger holds per-key sliding windows. Safe for concurrent use; callers
// that need read-modify-write atomicity across History and Record must
// serialize per key themselves (the scoring engine does).
type Ledger struct {
	windows sync.Map // Key → *keyWindow
	keys    atomic.Int64
	entries atomic.Int64
}

type keyWindow struct {
	mu      sync.Mutex
	records []Record
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Record appends rec to the window for key, keeping the window time-ordered,
// then discards entries older than the retention period relative to the
// newest timestamp in the window. Out-of-order arrivals are accepted and
// placed at their sorted position.
func (l *Ledger) Record(key Key, rec Record) {
	w := l.window(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.records)
	if n == 0 || !rec.Timestamp.Before(w.records[n-1].Timestamp) {
		w.records = append(w.records, rec)
	} else {
		// Late arrival: insert at the sorted position so the ascending
		// invariant holds for every reader.
		i := sort.Search(n, func(i int) bool {
			return w.records[i].Timestamp.After(rec.Timestamp)
		})
		w.records = append(w.records, Record{})
		copy(w.records[i+1:], w.records[i:])
		w.records[i] = rec
	}
	l.entries.Add(1)

	l.prune(w)
}

// History returns a copy of the current (already-pruned) window for key,
// oldest first. A key with no history returns an empty slice.
func (l *Ledger) History(key Key) []Record {
	v, ok := l.windows.Load(key)
	if !ok {
		return nil
	}
	w := v.(*keyWindow)

	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}

// WindowStats computes count and amount sum for each requested trailing
// window ending at now. Computed against the live window, never a cache.
func (l *Ledger) WindowStats(key Key, now time.Time, windows []time.Duration) []WindowStat {
	history := l.History(key)

	stats := make([]WindowStat, len(windows))
	for i, d := range windows {
		cutoff := now.Add(-d)
		s := WindowStat{Window: d}
		for _, rec := range history {
			if !rec.Timestamp.Before(cutoff) {
				s.Count++
				s.AmountSum += rec.Amount
			}
		}
		stats[i] = s
	}
	return stats
}

// Last returns the newest record for key, or false if the key has no history.
func (l *Ledger) Last(key Key) (Record, bool) {
	v, ok := l.windows.Load(key)
	if !ok {
		return Record{}, false
	}
	w := v.(*keyWindow)

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.records) == 0 {
		return Record{}, false
	}
	return w.records[len(w.records)-1], true
}

// Stats reports how many entities are tracked and how many history entries
// are held across all windows.
func (l *Ledger) Stats() Stats {
	return Stats{
		EntitiesTracked:   int(l.keys.Load()),
		TotalHistoryCount: l.entries.Load(),
	}
}

func (l *Ledger) window(key Key) *keyWindow {
	v, loaded := l.windows.LoadOrStore(key, &keyWindow{})
	if !loaded {
		l.keys.Add(1)
	}
	return v.(*keyWindow)
}

// prune drops entries older than Retention relative to the newest entry.
// Caller holds w.mu.
func (l *Ledger) prune(w *keyWindow) {
	n := len(w.records)
	if n == 0 {
		return
	}
	cutoff := w.records[n-1].Timestamp.Add(-Retention)
	start := 0
	for start < n && w.records[start].Timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		w.records = w.records[start:]
		l.entries.Add(int64(-start))
	}
}
