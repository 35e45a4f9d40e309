package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the fraud scoring MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolScoreTransaction = mcp.NewTool("score_transaction",
	mcp.WithDescription(
		"Score a payment transaction for fraud risk. "+
			"Returns a fraud probability, a risk level (low/medium/high), and a "+
			"recommendation (ALLOW/CHALLENGE/BLOCK). Scoring also updates the "+
			"user's behavioral history, so submit transactions in order."),
	mcp.WithNumber("user",
		mcp.Required(),
		mcp.Description("Numeric user ID of the cardholder")),
	mcp.WithNumber("card",
		mcp.Required(),
		mcp.Description("Numeric card ID within the user's wallet")),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Transaction amount in dollars. Negative values are refunds.")),
	mcp.WithNumber("merchant",
		mcp.Required(),
		mcp.Description("Numeric merchant ID")),
	mcp.WithNumber("mcc",
		mcp.Description("Merchant category code (e.g. 5411 for grocery stores)")),
	mcp.WithString("merchant_city",
		mcp.Description("Merchant city name, or 'ONLINE' for card-not-present")),
	mcp.WithString("merchant_state",
		mcp.Description("Merchant state or country (e.g. 'CA', 'Italy')")),
	mcp.WithString("use_chip",
		mcp.Description("Entry mode from the feed: 'Chip Transaction', 'Swipe Transaction', or 'Online Transaction'"),
		mcp.Enum("Chip Transaction", "Swipe Transaction", "Online Transaction")),
	mcp.WithString("datetime",
		mcp.Description("Transaction timestamp, e.g. '2026-03-14 10:30:00'. Defaults to now.")),
)

var ToolGetStatistics = mcp.NewTool("get_statistics",
	mcp.WithDescription(
		"Get aggregate fraud scoring statistics: total predictions, fraud rate, "+
			"average probability, average latency, and the risk-level breakdown."),
)

var ToolGetModelInfo = mcp.NewTool("get_model_info",
	mcp.WithDescription(
		"Get metadata about the active fraud model: version, kind, feature count, "+
			"and when it was loaded."),
)

var ToolGetFraudAlerts = mcp.NewTool("get_fraud_alerts",
	mcp.WithDescription(
		"List recent high-risk predictions (probability >= 0.8). "+
			"Use this to review transactions the engine flagged for blocking."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of alerts to return (default 20)")),
)

var ToolGetEngineStats = mcp.NewTool("get_engine_stats",
	mcp.WithDescription(
		"Get scoring engine counters: transactions scored, fraud flagged, and the "+
			"number of entities, users, and merchants being tracked."),
)
