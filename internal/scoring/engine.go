package scoring

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mbd888/fraudscore/internal/feature"
	"github.com/mbd888/fraudscore/internal/ledger"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/metrics"
	"github.com/mbd888/fraudscore/internal/model"
	"github.com/mbd888/fraudscore/internal/profile"
	"github.com/mbd888/fraudscore/internal/syncutil"
	"github.com/mbd888/fraudscore/internal/traces"
)

// CardSource resolves card metadata for feature assembly. Lookups are
// best-effort: a miss or error degrades to the default card profile.
type CardSource interface {
	Lookup(ctx context.Context, card int64) (feature.CardProfile, error)
}

// Engine owns the scoring state machine. All state mutation for one
// user-card entity happens under that entity's lock, so feature assembly
// reads a frozen view and history updates never race.
type Engine struct {
	ledger     *ledger.Ledger
	profiles   *profile.Store
	assembler  *feature.Assembler
	handle     *model.Handle
	cards      CardSource
	thresholds Thresholds
	locks      *syncutil.ContextShardedMutex

	scored  atomic.Int64
	flagged atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds overrides the default risk tier boundaries.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithCardSource attaches a card registry for card-level features.
func WithCardSource(s CardSource) Option {
	return func(e *Engine) { e.cards = s }
}

// NewEngine builds an engine scoring through the given model handle.
func NewEngine(handle *model.Handle, opts ...Option) *Engine {
	l := ledger.New()
	p := profile.NewStore()
	e := &Engine{
		ledger:     l,
		profiles:   p,
		assembler:  feature.NewAssembler(l, p),
		handle:     handle,
		thresholds: DefaultThresholds,
		locks:      syncutil.NewContextShardedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score runs the full pipeline for one transaction. On any error the
// transaction leaves no trace: history and profiles are only updated after
// the classifier has produced a verdict.
func (e *Engine) Score(ctx context.Context, txn feature.Transaction) (Result, error) {
	start := time.Now()

	if err := validate(&txn); err != nil {
		return Result{}, err
	}

	ctx, span := traces.StartSpan(ctx, "scoring.Score",
		traces.TransactionID(txn.ID), traces.User(txn.User),
		traces.Merchant(txn.Merchant), traces.Amount(txn.Amount))
	defer span.End()

	clf, err := e.handle.Get()
	if err != nil {
		return Result{}, err
	}

	key := txn.Key()
	unlock, err := e.locks.LockContext(ctx, key.String())
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	var warnings []string
	card := feature.DefaultCardProfile()
	if e.cards != nil {
		if got, lookupErr := e.cards.Lookup(ctx, txn.Card); lookupErr == nil {
			card = got
		} else {
			warnings = append(warnings, "card_registry_unavailable")
			logging.L(ctx).Warn("card lookup failed, using default card profile",
				"card", txn.Card, "error", lookupErr)
		}
	}

	_, assembleSpan := traces.StartSpan(ctx, "scoring.Assemble")
	features := e.assembler.Compute(txn, card)
	vector := features.Vector(clf.Columns())
	assembleSpan.End()

	predictCtx, predictSpan := traces.StartSpan(ctx, "scoring.Predict",
		traces.ModelVersion(clf.Info().Version))
	pred, err := clf.Predict(predictCtx, vector)
	predictSpan.End()
	if err != nil {
		metrics.ClassifierErrorsTotal.WithLabelValues(ErrCode(err)).Inc()
		return Result{}, err
	}

	// Commit phase. Only reached on a successful prediction.
	e.ledger.Record(key, ledger.Record{
		Timestamp: txn.Timestamp,
		Amount:    txn.Amount,
		Merchant:  txn.Merchant,
		MCC:       txn.MCC,
	})
	e.profiles.ObserveUser(txn.User, txn.Amount, txn.Card, txn.Merchant, txn.MCC, txn.Timestamp)
	e.profiles.ObserveMerchant(txn.Merchant, txn.MCC, txn.State, txn.Amount)

	level := e.thresholds.Level(pred.Probability)
	span.SetAttributes(traces.RiskLevel(string(level)), traces.Probability(pred.Probability))

	e.scored.Add(1)
	if pred.Fraud {
		e.flagged.Add(1)
	}
	metrics.PredictionsTotal.WithLabelValues(string(level)).Inc()
	if pred.Fraud {
		metrics.FraudFlaggedTotal.Inc()
	}
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	ls := e.ledger.Stats()
	metrics.LedgerEntities.Set(float64(ls.EntitiesTracked))
	metrics.LedgerEntries.Set(float64(ls.TotalHistoryCount))

	return Result{
		TransactionID:  txn.ID,
		Key:            key,
		IsFraud:        pred.Fraud,
		Probability:    pred.Probability,
		RiskLevel:      level,
		Recommendation: e.thresholds.Recommendation(level),
		ModelVersion:   clf.Info().Version,
		LatencyMS:      float64(time.Since(start).Microseconds()) / 1000,
		ScoredAt:       time.Now().UTC(),
		Features:       features,
		Warnings:       warnings,
	}, nil
}

// validate normalizes the transaction in place, defaulting a zero timestamp
// to now.
func validate(txn *feature.Transaction) error {
	if txn.User <= 0 {
		return validationError("user is required")
	}
	if txn.Card <= 0 {
		return validationError("card is required")
	}
	if txn.Merchant == 0 {
		return validationError("merchant is required")
	}
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now().UTC()
	}
	return nil
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Scored           int64 `json:"transactions_scored"`
	Flagged          int64 `json:"transactions_flagged"`
	EntitiesTracked  int   `json:"entities_tracked"`
	HistoryEntries   int64 `json:"history_entries"`
	UsersTracked     int64 `json:"users_tracked"`
	MerchantsTracked int64 `json:"merchants_tracked"`
}

func (e *Engine) Stats() Stats {
	ls := e.ledger.Stats()
	return Stats{
		Scored:           e.scored.Load(),
		Flagged:          e.flagged.Load(),
		EntitiesTracked:  ls.EntitiesTracked,
		HistoryEntries:   ls.TotalHistoryCount,
		UsersTracked:     e.profiles.UsersTracked(),
		MerchantsTracked: e.profiles.MerchantsTracked(),
	}
}

// History exposes the retained window for one entity, oldest first.
func (e *Engine) History(key ledger.Key) []ledger.Record {
	return e.ledger.History(key)
}

// Thresholds returns the active tier boundaries.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Model returns the handle the engine predicts through.
func (e *Engine) Model() *model.Handle {
	return e.handle
}
