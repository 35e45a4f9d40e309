// Package registry tracks card metadata used for card-level features:
// brand, funding, chip capability, and dark-web exposure. Cards are
// registered explicitly; unknown cards degrade to a default profile.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/mbd888/fraudscore/internal/feature"
)

// CardInfo is the stored metadata for one card.
type CardInfo struct {
	Card         int64     `json:"card"`
	Brand        string    `json:"brand"`
	Funding      string    `json:"funding"`
	HasChip      bool      `json:"has_chip"`
	OnDarkWeb    bool      `json:"on_dark_web"`
	TxnCount     int64     `json:"txn_count"`
	StripeID     string    `json:"stripe_payment_method,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Profile converts stored metadata into the assembler's card view.
func (c CardInfo) Profile() feature.CardProfile {
	count := c.TxnCount
	if count <= 0 {
		count = 1
	}
	return feature.CardProfile{
		TxnCount:  count,
		HasChip:   c.HasChip,
		Brand:     c.Brand,
		Funding:   c.Funding,
		OnDarkWeb: c.OnDarkWeb,
	}
}

// Enricher fills in brand and funding from an external card source.
type Enricher interface {
	Enrich(ctx context.Context, stripeID string) (brand, funding string, err error)
}

// MemoryRegistry is the in-process card store. An optional Enricher is
// consulted at registration time when a Stripe payment method is attached.
type MemoryRegistry struct {
	mu       sync.RWMutex
	cards    map[int64]CardInfo
	enricher Enricher
}

func NewMemoryRegistry(enricher Enricher) *MemoryRegistry {
	return &MemoryRegistry{
		cards:    make(map[int64]CardInfo),
		enricher: enricher,
	}
}

// Register stores card metadata. When the card carries a Stripe payment
// method ID and an enricher is configured, brand and funding come from
// Stripe and override whatever the caller supplied.
func (r *MemoryRegistry) Register(ctx context.Context, info CardInfo) (CardInfo, error) {
	if info.StripeID != "" && r.enricher != nil {
		brand, funding, err := r.enricher.Enrich(ctx, info.StripeID)
		if err != nil {
			return CardInfo{}, err
		}
		info.Brand = brand
		info.Funding = funding
	}
	if info.Brand == "" {
		info.Brand = "visa"
	}
	if info.Funding == "" {
		info.Funding = "debit"
	}
	info.RegisteredAt = time.Now().UTC()

	r.mu.Lock()
	r.cards[info.Card] = info
	r.mu.Unlock()
	return info, nil
}

// Get returns the stored metadata for a card.
func (r *MemoryRegistry) Get(card int64) (CardInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.cards[card]
	return info, ok
}

// FlagDarkWeb marks a card as compromised.
func (r *MemoryRegistry) FlagDarkWeb(card int64, flagged bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.cards[card]
	if !ok {
		return false
	}
	info.OnDarkWeb = flagged
	r.cards[card] = info
	return true
}

// Observe counts one scored transaction against the card.
func (r *MemoryRegistry) Observe(card int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.cards[card]
	if !ok {
		return
	}
	info.TxnCount++
	r.cards[card] = info
}

// Count returns the number of registered cards.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cards)
}

// Lookup implements the scoring engine's card source. Unknown cards are not
// an error; they score with the default profile.
func (r *MemoryRegistry) Lookup(_ context.Context, card int64) (feature.CardProfile, error) {
	info, ok := r.Get(card)
	if !ok {
		return feature.DefaultCardProfile(), nil
	}
	return info.Profile(), nil
}
