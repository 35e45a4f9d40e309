package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all scoring tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("fraudscore", "1.0.0")
	client := NewScoreClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolScoreTransaction, h.HandleScoreTransaction)
	s.AddTool(ToolGetStatistics, h.HandleGetStatistics)
	s.AddTool(ToolGetModelInfo, h.HandleGetModelInfo)
	s.AddTool(ToolGetFraudAlerts, h.HandleGetFraudAlerts)
	s.AddTool(ToolGetEngineStats, h.HandleGetEngineStats)

	return s
}
