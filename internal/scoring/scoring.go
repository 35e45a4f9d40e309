// Package scoring runs the fraud scoring pipeline: assemble features for a
// transaction, score them with the loaded classifier, map the probability to
// a risk tier, then fold the transaction into history and profiles.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/fraudscore/internal/circuitbreaker"
	"github.com/mbd888/fraudscore/internal/feature"
	"github.com/mbd888/fraudscore/internal/ledger"
	"github.com/mbd888/fraudscore/internal/model"
)

// RiskLevel buckets a fraud probability.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Recommendation is the suggested action for a scored transaction.
type Recommendation string

const (
	ActionAllow     Recommendation = "ALLOW"
	ActionChallenge Recommendation = "CHALLENGE"
	ActionBlock     Recommendation = "BLOCK"
)

// Thresholds split the probability range into risk tiers. A probability in
// (LowMax, HighMax] is medium; above HighMax is high.
type Thresholds struct {
	LowMax  float64
	HighMax float64
}

// DefaultThresholds matches the tiers the model was calibrated against.
var DefaultThresholds = Thresholds{LowMax: 0.5, HighMax: 0.8}

// Level maps a probability to its risk tier.
func (t Thresholds) Level(p float64) RiskLevel {
	switch {
	case p >= t.HighMax:
		return RiskHigh
	case p >= t.LowMax:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Recommendation maps a risk tier to the suggested action.
func (t Thresholds) Recommendation(level RiskLevel) Recommendation {
	switch level {
	case RiskHigh:
		return ActionBlock
	case RiskMedium:
		return ActionChallenge
	default:
		return ActionAllow
	}
}

// Result is one completed scoring decision.
type Result struct {
	TransactionID  string           `json:"transaction_id"`
	Key            ledger.Key       `json:"-"`
	IsFraud        bool             `json:"is_fraud"`
	Probability    float64          `json:"probability"`
	RiskLevel      RiskLevel        `json:"risk_level"`
	Recommendation Recommendation   `json:"recommendation"`
	ModelVersion   string           `json:"model_version"`
	LatencyMS      float64          `json:"latency_ms"`
	ScoredAt       time.Time        `json:"scored_at"`
	Features       feature.Features `json:"features,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// Machine-readable error codes surfaced on API responses.
const (
	CodeValidation            = "validation_error"
	CodeModelNotReady         = "model_not_ready"
	CodeClassifierTimeout     = "classifier_timeout"
	CodeClassifierUnavailable = "classifier_unavailable"
	CodeClassifierError       = "classifier_error"
	CodeInternal              = "internal_error"
)

// Error carries a code alongside the message so handlers can map failures
// to responses without string matching.
type Error struct {
	Code    string
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

func validationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ErrCode classifies any pipeline error into a response code.
func ErrCode(err error) string {
	var se *Error
	switch {
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, model.ErrNotReady):
		return CodeModelNotReady
	case errors.Is(err, circuitbreaker.ErrOpen):
		return CodeClassifierUnavailable
	case isTimeout(err):
		return CodeClassifierTimeout
	default:
		return CodeInternal
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
