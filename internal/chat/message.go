// Package chat runs one conversation turn: it persists the user message,
// drives the model through its tool loop and streams the answer back in the
// data stream wire format.
package chat

import (
	"encoding/json"
	"strings"

	"github.com/cactux/cactux/internal/proxy"
)

// Part types of a UI message.
const (
	PartText           = "text"
	PartReasoning      = "reasoning"
	PartToolInvocation = "tool-invocation"
	PartStepStart      = "step-start"
)

// Tool invocation states.
const (
	StateCall   = "call"
	StateResult = "result"
)

// UIMessage is a message as exchanged with the chat client.
type UIMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// Part is one ordered segment of a UIMessage.
type Part struct {
	Type           string          `json:"type"`
	Text           string          `json:"text,omitempty"`
	Reasoning      string          `json:"reasoning,omitempty"`
	ToolInvocation *ToolInvocation `json:"toolInvocation,omitempty"`
}

type ToolInvocation struct {
	State      string          `json:"state"`
	Step       int             `json:"step"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Text returns the concatenated text parts, or Content when there are none.
func (m UIMessage) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	if b.Len() == 0 {
		return m.Content
	}
	return b.String()
}

// StoredParts returns the parts to persist. A message that only carries
// Content is stored as a single text part.
func (m UIMessage) StoredParts() []Part {
	if len(m.Parts) > 0 {
		return m.Parts
	}
	return []Part{{Type: PartText, Text: m.Content}}
}

// LastUserMessage returns the most recent user message, or nil.
func LastUserMessage(msgs []UIMessage) *UIMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == proxy.RoleUser {
			return &msgs[i]
		}
	}
	return nil
}

// ToProviderMessages converts the UI history into provider messages. Each
// assistant step becomes an assistant message carrying its tool calls,
// followed by one tool message per answered call. Calls without a result
// are dropped since the provider rejects unanswered calls.
func ToProviderMessages(msgs []UIMessage) []proxy.Message {
	var out []proxy.Message
	for _, m := range msgs {
		switch m.Role {
		case proxy.RoleUser, proxy.RoleSystem:
			out = append(out, proxy.Message{Role: m.Role, Content: m.Text()})
		case proxy.RoleAssistant:
			out = append(out, assistantMessages(m)...)
		}
	}
	return out
}

func assistantMessages(m UIMessage) []proxy.Message {
	if len(m.Parts) == 0 {
		if m.Content == "" {
			return nil
		}
		return []proxy.Message{{Role: proxy.RoleAssistant, Content: m.Content}}
	}

	var (
		out     []proxy.Message
		text    strings.Builder
		calls   []proxy.ToolCall
		results []proxy.Message
	)
	flush := func() {
		if text.Len() == 0 && len(calls) == 0 {
			return
		}
		out = append(out, proxy.Message{Role: proxy.RoleAssistant, Content: text.String(), ToolCalls: calls})
		out = append(out, results...)
		text.Reset()
		calls, results = nil, nil
	}

	for _, p := range m.Parts {
		switch p.Type {
		case PartStepStart:
			flush()
		case PartText:
			// Text after tool results opens a new step in older clients
			// that do not send step-start parts.
			if len(calls) > 0 {
				flush()
			}
			text.WriteString(p.Text)
		case PartToolInvocation:
			inv := p.ToolInvocation
			if inv == nil || inv.State != StateResult {
				continue
			}
			args := string(inv.Args)
			if args == "" {
				args = "{}"
			}
			calls = append(calls, proxy.ToolCall{
				ID:       inv.ToolCallID,
				Type:     "function",
				Function: proxy.FunctionCall{Name: inv.ToolName, Arguments: args},
			})
			results = append(results, proxy.Message{
				Role:       proxy.RoleTool,
				ToolCallID: inv.ToolCallID,
				Content:    resultText(inv.Result),
			})
		}
	}
	flush()
	return out
}

// resultText turns a stored tool result back into the string the tool
// produced: JSON strings are unquoted, other values kept as JSON text.
func resultText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// resultValue is the inverse of resultText. Tool output that is valid JSON
// is embedded as is; anything else is sent as a JSON string.
func resultValue(out string) json.RawMessage {
	if out != "" && json.Valid([]byte(out)) {
		return json.RawMessage(out)
	}
	b, _ := json.Marshal(out)
	return b
}
