package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cactux/cactux/internal/proxy"
)

// SetStreamHeaders marks a response as a v1 data stream.
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Vercel-AI-Data-Stream", "v1")
	h.Set("Cache-Control", "no-cache")
}

// StreamWriter writes data stream parts, one "<code>:<json>\n" line each,
// flushing after every part. The first write error is kept and later
// writes become no-ops so generation can finish and be persisted.
type StreamWriter struct {
	w      io.Writer
	f      http.Flusher
	client context.Context
	err    error
}

// NewStreamWriter wraps w. Once client is done every write is dropped and
// Err reports the cancellation; a nil client never expires.
func NewStreamWriter(client context.Context, w io.Writer) *StreamWriter {
	if client == nil {
		client = context.Background()
	}
	f, _ := w.(http.Flusher)
	return &StreamWriter{w: w, f: f, client: client}
}

// Err returns the first write error.
func (s *StreamWriter) Err() error { return s.err }

func (s *StreamWriter) part(code string, v any) error {
	if s.err == nil {
		s.err = s.client.Err()
	}
	if s.err != nil {
		return s.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s part: %w", code, err)
	}
	if _, err := fmt.Fprintf(s.w, "%s:%s\n", code, b); err != nil {
		s.err = err
		return err
	}
	if s.f != nil {
		s.f.Flush()
	}
	return nil
}

type usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

func toUsage(u proxy.Usage) usage {
	return usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
}

func (s *StreamWriter) StartStep(messageID string) error {
	return s.part("f", map[string]string{"messageId": messageID})
}

func (s *StreamWriter) Text(text string) error { return s.part("0", text) }

func (s *StreamWriter) Reasoning(text string) error { return s.part("g", text) }

func (s *StreamWriter) ToolCall(id, name string, args json.RawMessage) error {
	return s.part("9", struct {
		ToolCallID string          `json:"toolCallId"`
		ToolName   string          `json:"toolName"`
		Args       json.RawMessage `json:"args"`
	}{id, name, args})
}

func (s *StreamWriter) ToolResult(id string, result json.RawMessage) error {
	return s.part("a", struct {
		ToolCallID string          `json:"toolCallId"`
		Result     json.RawMessage `json:"result"`
	}{id, result})
}

func (s *StreamWriter) FinishStep(reason string, u proxy.Usage, continued bool) error {
	return s.part("e", struct {
		FinishReason string `json:"finishReason"`
		Usage        usage  `json:"usage"`
		IsContinued  bool   `json:"isContinued"`
	}{reason, toUsage(u), continued})
}

func (s *StreamWriter) Finish(reason string, u proxy.Usage) error {
	return s.part("d", struct {
		FinishReason string `json:"finishReason"`
		Usage        usage  `json:"usage"`
	}{reason, toUsage(u)})
}

func (s *StreamWriter) Error(msg string) error { return s.part("3", msg) }

var wordChunkRe = regexp.MustCompile(`\S+\s+`)

// wordChunker buffers text deltas and releases them a whole word (plus its
// trailing whitespace) at a time, pausing between words while the client
// is still reading.
type wordChunker struct {
	ctx   context.Context
	delay time.Duration
	emit  func(string) error
	buf   strings.Builder
}

func newWordChunker(ctx context.Context, delay time.Duration, emit func(string) error) *wordChunker {
	return &wordChunker{ctx: ctx, delay: delay, emit: emit}
}

func (c *wordChunker) Write(delta string) error {
	c.buf.WriteString(delta)
	rest := c.buf.String()
	for {
		loc := wordChunkRe.FindStringIndex(rest)
		if loc == nil {
			break
		}
		if err := c.emit(rest[:loc[1]]); err != nil {
			return err
		}
		rest = rest[loc[1]:]
		c.wait()
	}
	c.buf.Reset()
	c.buf.WriteString(rest)
	return nil
}

// Flush emits whatever is left, typically the last word of a step.
func (c *wordChunker) Flush() error {
	if c.buf.Len() == 0 {
		return nil
	}
	rest := c.buf.String()
	c.buf.Reset()
	return c.emit(rest)
}

// wait paces the next word. Pacing stops for good once the client is gone.
func (c *wordChunker) wait() {
	if c.delay <= 0 || c.ctx.Err() != nil {
		return
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-c.ctx.Done():
	case <-t.C:
	}
}
