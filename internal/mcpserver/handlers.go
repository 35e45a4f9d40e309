package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *ScoreClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *ScoreClient) *Handlers {
	return &Handlers{client: client}
}

// HandleScoreTransaction submits a transaction and formats the verdict.
func (h *Handlers) HandleScoreTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user := req.GetInt("user", 0)
	if user <= 0 {
		return mcp.NewToolResultError("user is required"), nil
	}
	card := req.GetInt("card", 0)
	if card <= 0 {
		return mcp.NewToolResultError("card is required"), nil
	}
	merchant := req.GetInt("merchant", 0)
	if merchant == 0 {
		return mcp.NewToolResultError("merchant is required"), nil
	}
	amount := req.GetFloat("amount", math.NaN())
	if math.IsNaN(amount) {
		return mcp.NewToolResultError("amount is required"), nil
	}

	// Field names follow the transaction feed schema.
	txn := map[string]any{
		"User":          user,
		"Card":          card,
		"Amount":        amount,
		"Merchant Name": merchant,
	}
	if mcc := req.GetInt("mcc", 0); mcc != 0 {
		txn["MCC"] = mcc
	}
	if v := req.GetString("merchant_city", ""); v != "" {
		txn["Merchant City"] = v
	}
	if v := req.GetString("merchant_state", ""); v != "" {
		txn["Merchant State"] = v
	}
	if v := req.GetString("use_chip", ""); v != "" {
		txn["Use Chip"] = v
	}
	if v := req.GetString("datetime", ""); v != "" {
		txn["DateTime"] = v
	}

	raw, err := h.client.ScoreTransaction(ctx, txn)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Scoring failed: %v", err)), nil
	}

	text, err := formatVerdict(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse verdict: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetStatistics returns aggregate scoring statistics.
func (h *Handlers) HandleGetStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetStatistics(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get statistics: %v", err)), nil
	}

	text, err := formatStatistics(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse statistics: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetModelInfo returns active model metadata.
func (h *Handlers) HandleGetModelInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetModelInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get model info: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetFraudAlerts lists recent high-risk predictions.
func (h *Handlers) HandleGetFraudAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.GetAlerts(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get alerts: %v", err)), nil
	}

	text, err := formatAlerts(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alerts: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetEngineStats returns engine counters.
func (h *Handlers) HandleGetEngineStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetEngineStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get engine stats: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// --- Formatting helpers ---

func formatVerdict(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	if id := getString(m, "transaction_id"); id != "" {
		fmt.Fprintf(&sb, "Transaction: %s\n", id)
	}
	if v, ok := getFloat(m, "probability"); ok {
		fmt.Fprintf(&sb, "Fraud probability: %.1f%%\n", v*100)
	}
	fmt.Fprintf(&sb, "Risk level: %s\n", getString(m, "risk_level"))
	fmt.Fprintf(&sb, "Recommendation: %s\n", getString(m, "recommendation"))
	if v := getString(m, "model_version"); v != "" {
		fmt.Fprintf(&sb, "Model: %s\n", v)
	}
	if v, ok := getFloat(m, "latency_ms"); ok {
		fmt.Fprintf(&sb, "Latency: %.2f ms\n", v)
	}
	return sb.String(), nil
}

func formatStatistics(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Scoring statistics:\n")
	if v, ok := getFloat(m, "total"); ok {
		fmt.Fprintf(&sb, "  Total predictions: %.0f\n", v)
	}
	if v, ok := getFloat(m, "fraud_count"); ok {
		fmt.Fprintf(&sb, "  Flagged as fraud: %.0f\n", v)
	}
	if v, ok := getFloat(m, "fraud_rate"); ok {
		fmt.Fprintf(&sb, "  Fraud rate: %.2f%%\n", v*100)
	}
	if v, ok := getFloat(m, "avg_probability"); ok {
		fmt.Fprintf(&sb, "  Average probability: %.3f\n", v)
	}
	if v, ok := getFloat(m, "avg_latency_ms"); ok {
		fmt.Fprintf(&sb, "  Average latency: %.2f ms\n", v)
	}
	if levels, ok := m["risk_levels"].(map[string]any); ok {
		sb.WriteString("  Risk levels:\n")
		for _, level := range []string{"low", "medium", "high"} {
			if v, ok := getFloat(levels, level); ok {
				fmt.Fprintf(&sb, "    %s: %.0f\n", level, v)
			}
		}
	}
	return sb.String(), nil
}

func formatAlerts(raw json.RawMessage) (string, error) {
	var resp struct {
		Alerts []map[string]any `json:"alerts"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Alerts == nil {
		if err := json.Unmarshal(raw, &resp.Alerts); err != nil {
			return "", fmt.Errorf("unexpected alerts response format")
		}
	}

	if len(resp.Alerts) == 0 {
		return "No fraud alerts.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d alert(s):\n\n", len(resp.Alerts))
	for i, a := range resp.Alerts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, getString(a, "transaction_id"))
		if v, ok := getFloat(a, "probability"); ok {
			fmt.Fprintf(&sb, "   Probability: %.1f%%", v*100)
		}
		if v, ok := getFloat(a, "amount"); ok {
			fmt.Fprintf(&sb, " | Amount: $%.2f", v)
		}
		sb.WriteString("\n")
		if v := getString(a, "recommendation"); v != "" {
			fmt.Fprintf(&sb, "   Recommendation: %s\n", v)
		}
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
