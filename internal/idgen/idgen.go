// Package idgen generates random identifiers for transactions, predictions,
// and alerts.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New returns a UUID-shaped random ID.
func New() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

// WithPrefix returns prefix followed by 24 random hex chars, e.g.
// WithPrefix("txn_") for transaction IDs or WithPrefix("alert_") for alerts.
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Hex returns numBytes of randomness hex-encoded.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
