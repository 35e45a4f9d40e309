package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the scoring service.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// ScoreClient is a pure HTTP client for the fraud scoring API.
type ScoreClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewScoreClient creates a new client for the scoring service.
func NewScoreClient(cfg Config) *ScoreClient {
	return &ScoreClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the service.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the service and returns the response body.
func (c *ScoreClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ScoreTransaction submits a single transaction for fraud scoring.
// The body uses the feed's field names, e.g. "Merchant Name".
func (c *ScoreClient) ScoreTransaction(ctx context.Context, txn map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/predict", nil, txn)
}

// GetStatistics returns aggregate prediction statistics.
func (c *ScoreClient) GetStatistics(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/statistics", nil, nil)
}

// GetModelInfo returns metadata about the active classifier.
func (c *ScoreClient) GetModelInfo(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/model/info", nil, nil)
}

// GetAlerts returns recent high-probability predictions.
func (c *ScoreClient) GetAlerts(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/api/alerts", q, nil)
}

// GetEngineStats returns scoring engine counters.
func (c *ScoreClient) GetEngineStats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/engine/stats", nil, nil)
}
