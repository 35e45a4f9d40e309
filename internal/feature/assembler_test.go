package feature

import (
	"math"
	"testing"
	"time"

	"github.com/mbd888/fraudscore/internal/ledger"
	"github.com/mbd888/fraudscore/internal/profile"
)

func newAssembler() (*Assembler, *ledger.Ledger, *profile.Store) {
	l := ledger.New()
	p := profile.NewStore()
	return NewAssembler(l, p), l, p
}

func baseTxn(at time.Time) Transaction {
	return Transaction{
		User:      1001,
		Card:      1,
		Amount:    45.50,
		Merchant:  777,
		City:      "San Francisco",
		State:     "CA",
		MCC:       5411,
		EntryMode: "Chip Transaction",
		Timestamp: at,
	}
}

func TestFirstTransactionDefaults(t *testing.T) {
	a, _, _ := newAssembler()
	txn := baseTxn(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))

	f := a.Compute(txn, DefaultCardProfile())

	checks := map[string]float64{
		"time_since_last_txn": 86400,
		"txn_count_1h":        1,
		"txn_count_24h":       1,
		"txn_count_7d":        1,
		"amount_sum_24h":      45.50,
		"user_avg_amount":     50,
		"user_card_count":     1,
		"user_txn_per_day":    1,
		"amount_vs_user_avg":  0,
	}
	for name, want := range checks {
		if got := f[name]; got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestVelocityIncludesCurrentTransaction(t *testing.T) {
	a, l, _ := newAssembler()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	key := ledger.Key{User: 1001, Card: 1}

	l.Record(key, ledger.Record{Timestamp: now.Add(-2 * time.Hour), Amount: 45.50, Merchant: 777, MCC: 5411})

	txn := baseTxn(now)
	txn.Amount = 20
	f := a.Compute(txn, DefaultCardProfile())

	if got := f["txn_count_1h"]; got != 1 {
		t.Errorf("txn_count_1h = %v, want 1", got)
	}
	if got := f["txn_count_24h"]; got != 2 {
		t.Errorf("txn_count_24h = %v, want 2", got)
	}
	if got := f["amount_sum_24h"]; math.Abs(got-65.50) > 1e-9 {
		t.Errorf("amount_sum_24h = %v, want 65.50", got)
	}
	if got := f["time_since_last_txn"]; got != 7200 {
		t.Errorf("time_since_last_txn = %v, want 7200", got)
	}
}

func TestTemporalEncoding(t *testing.T) {
	a, _, _ := newAssembler()
	// Saturday, 14 March 2026, 10:30 UTC.
	txn := baseTxn(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))

	f := a.Compute(txn, DefaultCardProfile())

	if f["hour"] != 10 || f["day_of_week"] != 5 || f["is_weekend"] != 1 {
		t.Errorf("temporal = hour %v dow %v weekend %v", f["hour"], f["day_of_week"], f["is_weekend"])
	}
	if math.Abs(f["hour_sin"]-math.Sin(2*math.Pi*10/24)) > 1e-12 {
		t.Errorf("hour_sin = %v", f["hour_sin"])
	}
	if f["month"] != 3 || f["year"] != 2026 || f["day_of_month"] != 14 {
		t.Errorf("date parts = %v/%v/%v", f["day_of_month"], f["month"], f["year"])
	}
}

func TestAmountFeatures(t *testing.T) {
	a, _, p := newAssembler()
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		p.ObserveUser(1001, 50, 1, 777, 5411, at.Add(time.Duration(i)*time.Hour))
	}

	txn := baseTxn(at.Add(5 * time.Hour))
	txn.Amount = 150
	f := a.Compute(txn, DefaultCardProfile())

	// All prior amounts are 50, so std is 0 and deviation is (150-50)/(0+1).
	if got := f["amount_vs_user_avg"]; math.Abs(got-100) > 1e-9 {
		t.Errorf("amount_vs_user_avg = %v, want 100", got)
	}
	if got := f["amount_log"]; math.Abs(got-math.Log1p(150)) > 1e-12 {
		t.Errorf("amount_log = %v", got)
	}
	if f["is_round_amount"] != 1 {
		t.Error("150 should be a round amount")
	}
	if f["is_refund"] != 0 {
		t.Error("positive amount flagged as refund")
	}
}

func TestRefundAmountLogStaysFinite(t *testing.T) {
	a, _, _ := newAssembler()
	txn := baseTxn(time.Now())
	txn.Amount = -25

	f := a.Compute(txn, DefaultCardProfile())

	if f["is_refund"] != 1 {
		t.Error("refund not flagged")
	}
	if math.IsNaN(f["amount_log"]) || math.IsInf(f["amount_log"], 0) {
		t.Errorf("amount_log = %v for refund", f["amount_log"])
	}
}

func TestEntryModes(t *testing.T) {
	a, _, _ := newAssembler()
	cases := []struct {
		mode                string
		chip, swipe, online float64
	}{
		{"Chip Transaction", 1, 0, 0},
		{"Swipe Transaction", 0, 1, 0},
		{"Online Transaction", 0, 0, 1},
		{"", 0, 0, 0},
	}
	for _, c := range cases {
		txn := baseTxn(time.Now())
		txn.EntryMode = c.mode
		f := a.Compute(txn, DefaultCardProfile())
		if f["is_chip_txn"] != c.chip || f["is_swipe_txn"] != c.swipe || f["is_online_txn"] != c.online {
			t.Errorf("mode %q: chip %v swipe %v online %v", c.mode, f["is_chip_txn"], f["is_swipe_txn"], f["is_online_txn"])
		}
		if f["is_online"] != c.online {
			t.Errorf("mode %q: is_online %v", c.mode, f["is_online"])
		}
	}
}

func TestMerchantFeatures(t *testing.T) {
	a, _, p := newAssembler()
	at := time.Now()

	p.ObserveMerchant(777, 5411, "CA", 30)
	p.ObserveMerchant(777, 5411, "CA", 40)
	p.ObserveUser(1001, 30, 1, 777, 5411, at)

	txn := baseTxn(at.Add(time.Minute))
	f := a.Compute(txn, DefaultCardProfile())

	if f["merchant_txn_count"] != 2 {
		t.Errorf("merchant_txn_count = %v, want 2", f["merchant_txn_count"])
	}
	if f["mcc_frequency"] != 2 {
		t.Errorf("mcc_frequency = %v, want 2", f["mcc_frequency"])
	}
	if f["is_first_merchant_txn"] != 0 || f["user_merchant_txn_count"] != 1 {
		t.Errorf("pair features = %v / %v", f["is_first_merchant_txn"], f["user_merchant_txn_count"])
	}

	txn.Merchant = 888
	f = a.Compute(txn, DefaultCardProfile())
	if f["is_first_merchant_txn"] != 1 || f["merchant_txn_count"] != 1 {
		t.Errorf("unseen merchant = first %v count %v", f["is_first_merchant_txn"], f["merchant_txn_count"])
	}
}

func TestGeographyFeatures(t *testing.T) {
	a, _, _ := newAssembler()
	cases := []struct {
		state, city                 string
		intl, highRisk, primary, missing float64
	}{
		{"CA", "San Francisco", 0, 0, 1, 0},
		{"Italy", "Rome", 1, 1, 0, 0},
		{"OH", "Columbus", 0, 1, 0, 0},
		{"Japan", "Tokyo", 1, 0, 0, 0},
		{"", "", 0, 0, 0, 1},
	}
	for _, c := range cases {
		txn := baseTxn(time.Now())
		txn.State, txn.City = c.state, c.city
		f := a.Compute(txn, DefaultCardProfile())
		if f["is_international"] != c.intl || f["is_high_risk_state"] != c.highRisk ||
			f["is_primary_state"] != c.primary || f["missing_geo_data"] != c.missing {
			t.Errorf("state %q: intl %v risk %v primary %v missing %v",
				c.state, f["is_international"], f["is_high_risk_state"], f["is_primary_state"], f["missing_geo_data"])
		}
	}
}

func TestCardFeatures(t *testing.T) {
	a, _, _ := newAssembler()
	txn := baseTxn(time.Now())
	txn.EntryMode = "Swipe Transaction"

	card := CardProfile{TxnCount: 12, HasChip: true, Brand: "mastercard", Funding: "credit"}
	f := a.Compute(txn, card)

	if f["card_txn_count"] != 12 || f["card_has_chip"] != 1 {
		t.Errorf("card basics = %v / %v", f["card_txn_count"], f["card_has_chip"])
	}
	if f["chip_mismatch"] != 1 {
		t.Error("swiping a chip card should flag chip_mismatch")
	}
	if f["is_mastercard"] != 1 || f["is_visa"] != 0 || f["is_credit"] != 1 || f["is_debit"] != 0 {
		t.Error("brand or funding flags wrong")
	}
}

func TestVectorFollowsSchemaOrder(t *testing.T) {
	a, _, _ := newAssembler()
	f := a.Compute(baseTxn(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)), DefaultCardProfile())

	cols := DefaultColumns()
	v := f.Vector(cols)
	if len(v) != len(cols) {
		t.Fatalf("vector length %d, want %d", len(v), len(cols))
	}
	for i, c := range cols {
		if v[i] != f[c] {
			t.Errorf("column %d (%s) = %v, want %v", i, c, v[i], f[c])
		}
	}

	// Unknown columns must zero-fill rather than shift positions.
	v2 := f.Vector([]string{"hour", "no_such_feature", "year"})
	if v2[1] != 0 || v2[0] != f["hour"] || v2[2] != f["year"] {
		t.Errorf("projection with unknown column = %v", v2)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	a, l, p := newAssembler()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	key := ledger.Key{User: 1001, Card: 1}

	l.Record(key, ledger.Record{Timestamp: now.Add(-time.Hour), Amount: 30, Merchant: 777, MCC: 5411})
	p.ObserveUser(1001, 30, 1, 777, 5411, now.Add(-time.Hour))
	p.ObserveMerchant(777, 5411, "CA", 30)

	txn := baseTxn(now)
	first := a.Compute(txn, DefaultCardProfile())
	second := a.Compute(txn, DefaultCardProfile())

	if len(first) != len(second) {
		t.Fatalf("feature counts differ: %d vs %d", len(first), len(second))
	}
	for name, v := range first {
		if second[name] != v {
			t.Errorf("%s changed between identical computes: %v vs %v", name, v, second[name])
		}
	}
}

func TestEveryColumnProduced(t *testing.T) {
	a, _, _ := newAssembler()
	f := a.Compute(baseTxn(time.Now()), DefaultCardProfile())

	for _, c := range DefaultColumns() {
		if _, ok := f[c]; !ok {
			t.Errorf("column %s missing from computed features", c)
		}
	}
}
