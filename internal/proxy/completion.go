package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Completion is the first choice of a non-streamed response.
type Completion struct {
	Message      Message
	FinishReason string
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   *string    `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// Complete sends a non-streamed request and returns the first choice.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*Completion, error) {
	req.Stream = false
	rc, err := c.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var resp completionResponse
	if err := json.NewDecoder(rc).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding completion: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("completion has no choices")
	}

	ch := resp.Choices[0]
	msg := Message{Role: ch.Message.Role, ToolCalls: ch.Message.ToolCalls}
	if ch.Message.Content != nil {
		msg.Content = *ch.Message.Content
	}
	return &Completion{Message: msg, FinishReason: ch.FinishReason}, nil
}

// Delta is one streamed increment. Text deltas arrive in Content and
// Reasoning; tool calls arrive fully assembled only in the StreamResult.
type Delta struct {
	Content   string
	Reasoning string
}

// StreamResult is the accumulated outcome of a streamed completion.
type StreamResult struct {
	Content      string
	Reasoning    string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Usage is the token accounting reported with the final chunk.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			Reasoning string          `json:"reasoning"`
			ToolCalls []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage    `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

// Stream sends a streamed request, calls onDelta for every text increment
// and returns the assembled result once the stream ends. An error from
// onDelta aborts the stream.
func (c *Client) Stream(ctx context.Context, req ChatRequest, onDelta func(Delta) error) (*StreamResult, error) {
	req.Stream = true
	rc, err := c.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var (
		content   strings.Builder
		reasoning strings.Builder
		res       StreamResult
		calls     = map[int]*ToolCall{}
	)

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		// Blank separators and ": keep-alive" comments.
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("decoding stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("provider error: %s", chunk.Error.Message)
		}
		if chunk.Usage != nil {
			res.Usage = *chunk.Usage
		}

		for _, ch := range chunk.Choices {
			d := Delta{Content: ch.Delta.Content, Reasoning: ch.Delta.Reasoning}
			content.WriteString(d.Content)
			reasoning.WriteString(d.Reasoning)
			if (d.Content != "" || d.Reasoning != "") && onDelta != nil {
				if err := onDelta(d); err != nil {
					return nil, err
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				call, ok := calls[tc.Index]
				if !ok {
					call = &ToolCall{Type: "function"}
					calls[tc.Index] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Type != "" {
					call.Type = tc.Type
				}
				call.Function.Name += tc.Function.Name
				call.Function.Arguments += tc.Function.Arguments
			}
			if ch.FinishReason != nil && *ch.FinishReason != "" {
				res.FinishReason = *ch.FinishReason
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}

	res.Content = content.String()
	res.Reasoning = reasoning.String()
	if len(calls) > 0 {
		idx := make([]int, 0, len(calls))
		for i := range calls {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		for _, i := range idx {
			res.ToolCalls = append(res.ToolCalls, *calls[i])
		}
	}
	return &res, nil
}
