// Package profile owns running behavioral statistics for users, merchants,
// merchant categories, and merchant states.
//
// Profiles are mutated incrementally per observation and live for the
// process lifetime. There is no eviction: the key space grows with the
// number of distinct users and merchants seen (a known memory-growth risk,
// accepted for the in-memory scope of this engine).
package profile

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// UserSnapshot is an immutable copy of a user's behavioral profile.
// Mean and variance are always taken from the same update, never torn.
type UserSnapshot struct {
	TxnCount          int64
	MeanAmount        float64
	Variance          float64
	CardCount         int
	MerchantDiversity int
	MCCDiversity      int
	FirstSeen         time.Time
	LastSeen          time.Time
}

// Std is the standard deviation of observed amounts.
func (s UserSnapshot) Std() float64 {
	return math.Sqrt(s.Variance)
}

// Deviation is the normalized distance of amount from the user's mean.
// The +1 in the denominator keeps it well-defined for brand-new profiles.
func (s UserSnapshot) Deviation(amount float64) float64 {
	return (amount - s.MeanAmount) / (s.Std() + 1)
}

// TxnPerDay is the observed transaction rate. A profile younger than a day
// reports its raw count, matching the one-per-day floor of a new user.
func (s UserSnapshot) TxnPerDay() float64 {
	days := s.LastSeen.Sub(s.FirstSeen).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(s.TxnCount) / days
}

// MerchantSnapshot is an immutable copy of a merchant or MCC profile.
type MerchantSnapshot struct {
	TxnCount   int64
	MeanAmount float64
	Variance   float64
}

// Std is the standard deviation of observed amounts.
func (s MerchantSnapshot) Std() float64 {
	return math.Sqrt(s.Variance)
}

// Deviation is the normalized distance of amount from the merchant's mean.
func (s MerchantSnapshot) Deviation(amount float64) float64 {
	return (amount - s.MeanAmount) / (s.Std() + 1)
}

// Store holds all running profiles. Safe for concurrent use; each entry
// carries its own lock so users and merchants update independently.
type Store struct {
	users     sync.Map // int64 → *userEntry
	merchants sync.Map // int64 → *statEntry
	mccs      sync.Map // int → *statEntry
	states    sync.Map // string → *atomic.Int64
	pairs     sync.Map // pairKey → *atomic.Int64

	userCount     atomic.Int64
	merchantCount atomic.Int64
}

type pairKey struct {
	user     int64
	merchant int64
}

type userEntry struct {
	mu        sync.Mutex
	amounts   welford
	cards     map[int64]struct{}
	merchants map[int64]struct{}
	mccs      map[int]struct{}
	firstSeen time.Time
	lastSeen  time.Time
}

type statEntry struct {
	mu      sync.Mutex
	amounts welford
}

// NewStore creates an empty profile store.
func NewStore() *Store {
	return &Store{}
}

// ObserveUser folds one transaction into the user's profile: amount into the
// online estimator, card/merchant/MCC into the diversity sets.
func (s *Store) ObserveUser(user int64, amount float64, card, merchant int64, mcc int, at time.Time) {
	e := s.userEntry(user)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.amounts.observe(amount)
	e.cards[card] = struct{}{}
	e.merchants[merchant] = struct{}{}
	e.mccs[mcc] = struct{}{}
	if e.firstSeen.IsZero() || at.Before(e.firstSeen) {
		e.firstSeen = at
	}
	if at.After(e.lastSeen) {
		e.lastSeen = at
	}

	s.pairCounter(user, merchant).Add(1)
}

// ObserveMerchant folds one transaction into the merchant profile, the
// separate MCC profile, and the per-state counter.
func (s *Store) ObserveMerchant(merchant int64, mcc int, state string, amount float64) {
	m := s.merchantEntry(merchant)
	m.mu.Lock()
	m.amounts.observe(amount)
	m.mu.Unlock()

	c := s.mccEntry(mcc)
	c.mu.Lock()
	c.amounts.observe(amount)
	c.mu.Unlock()

	if state != "" {
		s.stateCounter(state).Add(1)
	}
}

// SnapshotUser returns a copy of the user's profile, or false if the user
// has never been observed.
func (s *Store) SnapshotUser(user int64) (UserSnapshot, bool) {
	v, ok := s.users.Load(user)
	if !ok {
		return UserSnapshot{}, false
	}
	e := v.(*userEntry)

	e.mu.Lock()
	defer e.mu.Unlock()
	return UserSnapshot{
		TxnCount:          e.amounts.n,
		MeanAmount:        e.amounts.mean,
		Variance:          e.amounts.variance(),
		CardCount:         len(e.cards),
		MerchantDiversity: len(e.merchants),
		MCCDiversity:      len(e.mccs),
		FirstSeen:         e.firstSeen,
		LastSeen:          e.lastSeen,
	}, true
}

// SnapshotMerchant returns a copy of the merchant profile, or false if the
// merchant has never been observed.
func (s *Store) SnapshotMerchant(merchant int64) (MerchantSnapshot, bool) {
	v, ok := s.merchants.Load(merchant)
	if !ok {
		return MerchantSnapshot{}, false
	}
	return snapshotStat(v.(*statEntry)), true
}

// SnapshotMCC returns a copy of the merchant-category profile, or false if
// the MCC has never been observed.
func (s *Store) SnapshotMCC(mcc int) (MerchantSnapshot, bool) {
	v, ok := s.mccs.Load(mcc)
	if !ok {
		return MerchantSnapshot{}, false
	}
	return snapshotStat(v.(*statEntry)), true
}

// StateCount reports how many transactions have been seen for a merchant state.
func (s *Store) StateCount(state string) int64 {
	v, ok := s.states.Load(state)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// UserMerchantCount reports how many transactions a user has made with a
// merchant. Zero means the pair has never been seen.
func (s *Store) UserMerchantCount(user, merchant int64) int64 {
	v, ok := s.pairs.Load(pairKey{user, merchant})
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// UsersTracked reports the number of distinct user profiles held.
func (s *Store) UsersTracked() int64 {
	return s.userCount.Load()
}

// MerchantsTracked reports the number of distinct merchant profiles held.
func (s *Store) MerchantsTracked() int64 {
	return s.merchantCount.Load()
}

func snapshotStat(e *statEntry) MerchantSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return MerchantSnapshot{
		TxnCount:   e.amounts.n,
		MeanAmount: e.amounts.mean,
		Variance:   e.amounts.variance(),
	}
}

func (s *Store) userEntry(user int64) *userEntry {
	if v, ok := s.users.Load(user); ok {
		return v.(*userEntry)
	}
	v, loaded := s.users.LoadOrStore(user, &userEntry{
		cards:     make(map[int64]struct{}),
		merchants: make(map[int64]struct{}),
		mccs:      make(map[int]struct{}),
	})
	if !loaded {
		s.userCount.Add(1)
	}
	return v.(*userEntry)
}

func (s *Store) merchantEntry(merchant int64) *statEntry {
	v, loaded := s.merchants.LoadOrStore(merchant, &statEntry{})
	if !loaded {
		s.merchantCount.Add(1)
	}
	return v.(*statEntry)
}

func (s *Store) mccEntry(mcc int) *statEntry {
	v, _ := s.mccs.LoadOrStore(mcc, &statEntry{})
	return v.(*statEntry)
}

func (s *Store) stateCounter(state string) *atomic.Int64 {
	v, _ := s.states.LoadOrStore(state, &atomic.Int64{})
	return v.(*atomic.Int64)
}

func (s *Store) pairCounter(user, merchant int64) *atomic.Int64 {
	v, _ := s.pairs.LoadOrStore(pairKey{user, merchant}, &atomic.Int64{})
	return v.(*atomic.Int64)
}
