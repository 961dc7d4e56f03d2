package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cactux/cactux/internal/tools"
)

// --- mocks ---

type stubTool struct {
	name  string
	out   string
	err   error
	input string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"userQuery":{"type":"string"}},"required":["userQuery"]}`)
}

func (s *stubTool) Call(_ context.Context, input string) (string, error) {
	s.input = input
	return s.out, s.err
}

// --- helpers ---

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPServer_ListsRegistryTools(t *testing.T) {
	reg := tools.NewRegistry(&stubTool{name: "identifyZone"}, &stubTool{name: "weather"})
	s := NewMCPServer(reg, "test", nil)

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshaling response: %v", err)
	}

	var decoded struct {
		Result struct {
			Tools []struct {
				Name        string          `json:"name"`
				InputSchema json.RawMessage `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(decoded.Result.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %s", raw)
	}
	names := map[string]bool{}
	for _, tool := range decoded.Result.Tools {
		names[tool.Name] = true
		if !strings.Contains(string(tool.InputSchema), "userQuery") {
			t.Fatalf("tool %s lost its schema: %s", tool.Name, tool.InputSchema)
		}
	}
	if !names["identifyZone"] || !names["weather"] {
		t.Fatalf("unexpected tools: %v", names)
	}
}

func TestMCPTool_PassesArgumentsAsJSON(t *testing.T) {
	stub := &stubTool{name: "identifyZone", out: `"candelas"`}
	handler := mcpToolHandler(stub, nil)

	result, err := handler(context.Background(), makeCallToolRequest("identifyZone", map[string]interface{}{
		"userQuery": "rutas en candelas",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != `"candelas"` {
		t.Fatalf("unexpected text: %s", got)
	}
	if stub.input != `{"userQuery":"rutas en candelas"}` {
		t.Fatalf("unexpected tool input: %s", stub.input)
	}
}

func TestMCPTool_NilArguments(t *testing.T) {
	stub := &stubTool{name: "retrieveAccommodationData", out: "[]"}
	result, err := mcpToolHandler(stub, nil)(context.Background(), makeCallToolRequest("retrieveAccommodationData", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.input != "{}" {
		t.Fatalf("expected empty object input, got %q", stub.input)
	}
	if toolText(t, result) != "[]" {
		t.Fatalf("unexpected text: %s", toolText(t, result))
	}
}

func TestMCPTool_ErrorBecomesErrorResult(t *testing.T) {
	stub := &stubTool{name: "weather", err: errors.New("invalid arguments: bad json")}
	result, err := mcpToolHandler(stub, nil)(context.Background(), makeCallToolRequest("weather", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "bad json") {
		t.Fatalf("unexpected text: %s", toolText(t, result))
	}
}
