package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	client := NewScoreClient(Config{APIURL: ts.URL})
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "model_not_ready",
			"message": "no classifier loaded",
		})
	}))
	defer ts.Close()

	client := NewScoreClient(Config{APIURL: ts.URL})
	_, err := client.GetModelInfo(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "no classifier loaded")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewScoreClient(Config{APIURL: ts.URL})
	_, err := client.GetStatistics(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_DoRequest_ConnectionRefused(t *testing.T) {
	client := NewScoreClient(Config{APIURL: "http://127.0.0.1:1"})
	_, err := client.GetStatistics(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_ScoreTransaction_SendsFeedFields(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/predict", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"transaction_id":"txn_1","risk_level":"low","recommendation":"ALLOW"}`))
	}))
	defer ts.Close()

	client := NewScoreClient(Config{APIURL: ts.URL})
	_, err := client.ScoreTransaction(context.Background(), map[string]any{
		"User":          1,
		"Card":          2,
		"Amount":        45.5,
		"Merchant Name": 999,
	})
	require.NoError(t, err)
	assert.Equal(t, 45.5, gotBody["Amount"])
	assert.Contains(t, gotBody, "Merchant Name")
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleScoreTransaction_Success(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transaction_id": "txn_abc",
			"is_fraud":       true,
			"probability":    0.91,
			"risk_level":     "high",
			"recommendation": "BLOCK",
			"model_version":  "v3",
			"latency_ms":     1.25,
		})
	}))
	defer cleanup()

	req := makeRequest(map[string]any{
		"user":     float64(7),
		"card":     float64(1),
		"amount":   float64(812.40),
		"merchant": float64(4242),
		"use_chip": "Online Transaction",
	})
	result, err := h.HandleScoreTransaction(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "txn_abc")
	assert.Contains(t, text, "91.0%")
	assert.Contains(t, text, "high")
	assert.Contains(t, text, "BLOCK")
}

func TestHandleScoreTransaction_MissingUser(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called when user is missing")
	}))
	defer cleanup()

	req := makeRequest(map[string]any{
		"card":     float64(1),
		"amount":   float64(10),
		"merchant": float64(42),
	})
	result, err := h.HandleScoreTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "user is required")
}

func TestHandleScoreTransaction_ZeroAmountAllowed(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(0), body["Amount"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transaction_id": "txn_zero",
			"probability":    0.02,
			"risk_level":     "low",
			"recommendation": "ALLOW",
		})
	}))
	defer cleanup()

	req := makeRequest(map[string]any{
		"user":     float64(1),
		"card":     float64(1),
		"amount":   float64(0),
		"merchant": float64(42),
	})
	result, err := h.HandleScoreTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandleScoreTransaction_MissingAmount(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called when amount is missing")
	}))
	defer cleanup()

	req := makeRequest(map[string]any{
		"user":     float64(1),
		"card":     float64(1),
		"merchant": float64(42),
	})
	result, err := h.HandleScoreTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "amount is required")
}

func TestHandleScoreTransaction_APIError(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "model_not_ready",
			"message": "no classifier loaded",
		})
	}))
	defer cleanup()

	req := makeRequest(map[string]any{
		"user":     float64(1),
		"card":     float64(1),
		"amount":   float64(10),
		"merchant": float64(42),
	})
	result, err := h.HandleScoreTransaction(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no classifier loaded")
}

func TestHandleGetStatistics(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/statistics", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":           120,
			"fraud_count":     6,
			"fraud_rate":      0.05,
			"avg_probability": 0.21,
			"avg_latency_ms":  0.8,
			"risk_levels":     map[string]int{"low": 100, "medium": 14, "high": 6},
		})
	}))
	defer cleanup()

	result, err := h.HandleGetStatistics(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Total predictions: 120")
	assert.Contains(t, text, "Fraud rate: 5.00%")
	assert.Contains(t, text, "high: 6")
}

func TestHandleGetFraudAlerts(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/alerts", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"alerts": []map[string]any{
				{"transaction_id": "txn_1", "probability": 0.95, "amount": 720.0, "recommendation": "BLOCK"},
				{"transaction_id": "txn_2", "probability": 0.83, "amount": 55.0, "recommendation": "BLOCK"},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleGetFraudAlerts(context.Background(), makeRequest(map[string]any{"limit": float64(5)}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 alert(s)")
	assert.Contains(t, text, "txn_1")
	assert.Contains(t, text, "95.0%")
}

func TestHandleGetFraudAlerts_Empty(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"alerts": []map[string]any{}})
	}))
	defer cleanup()

	result, err := h.HandleGetFraudAlerts(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No fraud alerts")
}

func TestHandleGetModelInfo(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/model/info", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"version":       "v3",
			"kind":          "logistic_artifact",
			"feature_count": 46,
		})
	}))
	defer cleanup()

	result, err := h.HandleGetModelInfo(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "logistic_artifact")
}
