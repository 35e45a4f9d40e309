package feature

import (
	"math"
	"strings"
	"time"

	"github.com/mbd888/fraudscore/internal/ledger"
	"github.com/mbd888/fraudscore/internal/profile"
)

const (
	// firstTxnGapSeconds stands in for time-since-last when the entity has
	// no prior history. One day keeps the value on the scale the model was
	// trained on.
	firstTxnGapSeconds = 86400.0

	// unknownUserAvgAmount is the global mean ticket, used before a user
	// profile exists.
	unknownUserAvgAmount = 50.0
)

var velocityWindows = []time.Duration{time.Hour, 24 * time.Hour, 7 * 24 * time.Hour}

// Assembler turns a transaction plus accumulated state into a feature map.
// It only reads from the ledger and profile store; recording the
// transaction back into them is the caller's job, after scoring.
type Assembler struct {
	ledger   *ledger.Ledger
	profiles *profile.Store
}

func NewAssembler(l *ledger.Ledger, p *profile.Store) *Assembler {
	return &Assembler{ledger: l, profiles: p}
}

// Compute derives every feature for txn. All time-relative features use the
// transaction's own timestamp, so the result is deterministic for a given
// transaction and state.
func (a *Assembler) Compute(txn Transaction, card CardProfile) Features {
	f := make(Features, 48)
	a.temporal(f, txn)
	a.amount(f, txn)
	a.velocity(f, txn)
	a.entryMode(f, txn)
	a.merchant(f, txn)
	a.geography(f, txn)
	a.user(f, txn)
	a.card(f, txn, card)
	return f
}

func (a *Assembler) temporal(f Features, txn Transaction) {
	t := txn.Timestamp
	hour := float64(t.Hour())
	dow := float64((int(t.Weekday()) + 6) % 7) // Monday = 0

	f["hour"] = hour
	f["day_of_week"] = dow
	f["day_of_month"] = float64(t.Day())
	f["month"] = float64(t.Month())
	f["year"] = float64(t.Year())
	f["is_weekend"] = b2f(dow >= 5)
	f["hour_sin"] = math.Sin(2 * math.Pi * hour / 24)
	f["hour_cos"] = math.Cos(2 * math.Pi * hour / 24)
	f["dow_sin"] = math.Sin(2 * math.Pi * dow / 7)
	f["dow_cos"] = math.Cos(2 * math.Pi * dow / 7)
}

func (a *Assembler) amount(f Features, txn Transaction) {
	f["amount_log"] = math.Log1p(math.Max(txn.Amount, 0))
	f["is_round_amount"] = b2f(txn.Amount > 0 && math.Mod(txn.Amount, 10) == 0)
	f["is_refund"] = b2f(txn.Amount < 0)

	if snap, ok := a.profiles.SnapshotUser(txn.User); ok {
		f["amount_vs_user_avg"] = snap.Deviation(txn.Amount)
	} else {
		f["amount_vs_user_avg"] = 0
	}
	if snap, ok := a.profiles.SnapshotMCC(txn.MCC); ok {
		f["amount_vs_mcc_avg"] = snap.Deviation(txn.Amount)
	} else {
		f["amount_vs_mcc_avg"] = 0
	}
}

// velocity counts include the transaction being scored, so a first
// transaction reports count 1, not 0.
func (a *Assembler) velocity(f Features, txn Transaction) {
	key := txn.Key()
	last, ok := a.ledger.Last(key)
	if !ok {
		f["time_since_last_txn"] = firstTxnGapSeconds
		f["txn_count_1h"] = 1
		f["txn_count_24h"] = 1
		f["txn_count_7d"] = 1
		f["amount_sum_24h"] = txn.Amount
		return
	}
	f["time_since_last_txn"] = txn.Timestamp.Sub(last.Timestamp).Seconds()

	stats := a.ledger.WindowStats(key, txn.Timestamp, velocityWindows)
	f["txn_count_1h"] = float64(stats[0].Count) + 1
	f["txn_count_24h"] = float64(stats[1].Count) + 1
	f["txn_count_7d"] = float64(stats[2].Count) + 1
	f["amount_sum_24h"] = stats[1].AmountSum + txn.Amount
}

func (a *Assembler) entryMode(f Features, txn Transaction) {
	chip := strings.Contains(txn.EntryMode, EntryChip)
	swipe := strings.Contains(txn.EntryMode, EntrySwipe)
	online := strings.Contains(txn.EntryMode, EntryOnline)

	f["is_online"] = b2f(online)
	f["is_chip_txn"] = b2f(chip)
	f["is_swipe_txn"] = b2f(swipe)
	f["is_online_txn"] = b2f(online)
}

func (a *Assembler) merchant(f Features, txn Transaction) {
	if snap, ok := a.profiles.SnapshotMerchant(txn.Merchant); ok {
		f["merchant_txn_count"] = float64(snap.TxnCount)
	} else {
		f["merchant_txn_count"] = 1
	}
	if snap, ok := a.profiles.SnapshotMCC(txn.MCC); ok {
		f["mcc_frequency"] = float64(snap.TxnCount)
	} else {
		f["mcc_frequency"] = 1
	}
	pair := a.profiles.UserMerchantCount(txn.User, txn.Merchant)
	f["is_first_merchant_txn"] = b2f(pair == 0)
	f["user_merchant_txn_count"] = float64(pair)
}

func (a *Assembler) geography(f Features, txn Transaction) {
	state := txn.State
	f["is_international"] = b2f(internationalStates[state])
	f["is_high_risk_state"] = b2f(highRiskStates[state])
	f["is_primary_state"] = b2f(primaryStates[state])
	f["missing_geo_data"] = b2f(state == "" || txn.City == "")
	if n := a.profiles.StateCount(state); n > 0 {
		f["state_txn_count"] = float64(n)
	} else {
		f["state_txn_count"] = 1
	}
}

func (a *Assembler) user(f Features, txn Transaction) {
	snap, ok := a.profiles.SnapshotUser(txn.User)
	if !ok {
		f["user_card_count"] = 1
		f["user_merchant_diversity"] = 1
		f["user_mcc_diversity"] = 1
		f["user_avg_amount"] = unknownUserAvgAmount
		f["user_txn_per_day"] = 1
		return
	}
	f["user_card_count"] = float64(snap.CardCount)
	f["user_merchant_diversity"] = float64(snap.MerchantDiversity)
	f["user_mcc_diversity"] = float64(snap.MCCDiversity)
	f["user_avg_amount"] = snap.MeanAmount
	f["user_txn_per_day"] = snap.TxnPerDay()
}

func (a *Assembler) card(f Features, txn Transaction, card CardProfile) {
	f["card_txn_count"] = float64(card.TxnCount)
	f["card_on_dark_web"] = b2f(card.OnDarkWeb)
	f["card_has_chip"] = b2f(card.HasChip)
	f["chip_mismatch"] = b2f(card.HasChip && strings.Contains(txn.EntryMode, EntrySwipe))
	f["is_visa"] = b2f(card.Brand == "visa")
	f["is_mastercard"] = b2f(card.Brand == "mastercard")
	f["is_debit"] = b2f(card.Funding == "debit")
	f["is_credit"] = b2f(card.Funding == "credit")
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
