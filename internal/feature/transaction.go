package feature

import (
	"time"

	"github.com/mbd888/fraudscore/internal/ledger"
)

// Entry-mode strings as they appear on the wire. Matching is substring-based
// so variants like "Chip Transaction" and "Chip" both register.
const (
	EntryChip   = "Chip"
	EntrySwipe  = "Swipe"
	EntryOnline = "Online"
)

// Transaction is the engine's view of one incoming payment.
type Transaction struct {
	ID        string
	User      int64
	Card      int64
	Amount    float64
	Merchant  int64
	City      string
	State     string
	MCC       int
	EntryMode string
	Timestamp time.Time
}

// Key returns the entity scope for history and velocity.
func (t Transaction) Key() ledger.Key {
	return ledger.Key{User: t.User, Card: t.Card}
}

// CardProfile carries card metadata from the optional card registry.
type CardProfile struct {
	TxnCount  int64
	HasChip   bool
	Brand     string // "visa", "mastercard", ...
	Funding   string // "debit" or "credit"
	OnDarkWeb bool
}

// DefaultCardProfile is used when no card registry is configured or the
// card is unknown to it: a chip-equipped Visa debit card, matching the
// modal card in the training data.
func DefaultCardProfile() CardProfile {
	return CardProfile{TxnCount: 1, HasChip: true, Brand: "visa", Funding: "debit"}
}
