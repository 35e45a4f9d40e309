package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mbd888/fraudscore/internal/circuitbreaker"
)

const remoteUpstream = "classifier"

// RemoteClassifier scores vectors against an external model service. Calls
// run under a circuit breaker so a dead service fails fast instead of
// stalling every prediction on the timeout.
type RemoteClassifier struct {
	url      string
	columns  []string
	client   *http.Client
	breaker  *circuitbreaker.Breaker
	version  string
	loadedAt time.Time
}

// NewRemote points a classifier at a scoring endpoint. columns is the schema
// the service was trained on; the caller owns keeping the two in sync.
func NewRemote(url string, columns []string, timeout time.Duration, breaker *circuitbreaker.Breaker) *RemoteClassifier {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if breaker == nil {
		breaker = circuitbreaker.New(5, 30*time.Second)
	}
	return &RemoteClassifier{
		url:      url,
		columns:  columns,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
		version:  "remote",
		loadedAt: time.Now(),
	}
}

type remoteRequest struct {
	Features []float64 `json:"features"`
}

type remoteResponse struct {
	IsFraud     bool    `json:"is_fraud"`
	Probability float64 `json:"probability"`
}

func (c *RemoteClassifier) Predict(ctx context.Context, vector []float64) (Prediction, error) {
	var pred Prediction
	err := c.breaker.Do(remoteUpstream, func() error {
		body, err := json.Marshal(remoteRequest{Features: vector})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("classifier returned %d", resp.StatusCode)
		}
		var out remoteResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode classifier response: %w", err)
		}
		pred = Prediction{Fraud: out.IsFraud, Probability: out.Probability}
		return nil
	})
	if err != nil {
		return Prediction{}, err
	}
	return pred, nil
}

func (c *RemoteClassifier) Columns() []string {
	return c.columns
}

func (c *RemoteClassifier) Info() Info {
	return Info{
		Version:      c.version,
		Kind:         "remote",
		Source:       c.url,
		FeatureCount: len(c.columns),
		LoadedAt:     c.loadedAt,
	}
}

var _ Classifier = (*RemoteClassifier)(nil)
