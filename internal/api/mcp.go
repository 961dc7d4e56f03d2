package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/tools"
)

// NewMCPServer creates an MCP server exposing every tool of the registry
// with its own JSON schema.
func NewMCPServer(reg *tools.Registry, version string, log *logging.Logger) *server.MCPServer {
	if log == nil {
		log = logging.Nop()
	}
	log = log.Sub("mcp")

	s := server.NewMCPServer(
		"cactux",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Cactux: climbing, weather and local services knowledge for Guadalcazar, San Luis Potosi."),
		server.WithRecovery(),
	)

	for _, t := range reg.All() {
		s.AddTool(
			mcp.NewToolWithRawSchema(t.Name(), t.Description(), t.Parameters()),
			mcpToolHandler(t, log),
		)
	}
	return s
}

func mcpToolHandler(t tools.Tool, log *logging.Logger) server.ToolHandlerFunc {
	if log == nil {
		log = logging.Nop()
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		input, err := json.Marshal(args)
		if err != nil {
			return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		out, err := t.Call(ctx, string(input))
		if err != nil {
			log.Warn().Err(err).Str("tool", t.Name()).Msg("mcp tool call failed")
			return mcpError(err.Error()), nil
		}
		return mcpText(out), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
