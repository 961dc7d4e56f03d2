package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/proxy"
	"github.com/cactux/cactux/internal/storage"
	"github.com/cactux/cactux/internal/tools"
)

// DefaultMaxSteps bounds the number of model calls in one turn.
const DefaultMaxSteps = 20

const saveTimeout = 10 * time.Second

// ErrNoUserMessage is returned by Prepare when the request carries no user
// message or no chat id.
var ErrNoUserMessage = errors.New("no user message")

// Store is the part of the chat store a turn needs.
type Store interface {
	CreateChat(ctx context.Context, c storage.Chat) error
	GetChatByID(ctx context.Context, id string) (*storage.Chat, error)
	AddMessages(ctx context.Context, msgs []storage.Message) error
}

// Streamer is the streamed model call.
type Streamer interface {
	Stream(ctx context.Context, req proxy.ChatRequest, onDelta func(proxy.Delta) error) (*proxy.StreamResult, error)
}

// Config holds the per-deployment settings of the orchestrator.
type Config struct {
	Model        string
	SystemPrompt string
	MaxSteps     int
	// ChunkDelay is the pause between streamed words. Zero disables it.
	ChunkDelay time.Duration
}

// Request is the body of a chat call.
type Request struct {
	ID       string      `json:"id"`
	UserID   string      `json:"userId"`
	Messages []UIMessage `json:"messages"`
}

// Orchestrator composes the chat store, the model and the tools.
type Orchestrator struct {
	store  Store
	llm    Streamer
	tools  *tools.Registry
	titles Titler
	cfg    Config
	log    *logging.Logger
}

// NewOrchestrator builds an orchestrator. A nil registry means no tools and
// a nil titler keeps storage.DefaultChatTitle for new chats.
func NewOrchestrator(store Store, llm Streamer, reg *tools.Registry, titles Titler, cfg Config, log *logging.Logger) *Orchestrator {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	if reg == nil {
		reg = tools.NewRegistry()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{store: store, llm: llm, tools: reg, titles: titles, cfg: cfg, log: log.Sub("chat")}
}

// Turn is a prepared request whose user message is already persisted.
type Turn struct {
	o         *Orchestrator
	chatID    string
	history   []UIMessage
	messageID string
}

// MessageID is the id the assistant reply will be stored under.
func (t *Turn) MessageID() string { return t.messageID }

// Prepare resolves the chat, creating it with a generated title when it is
// new, and persists the latest user message. Every error it returns happens
// before anything has been streamed.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (*Turn, error) {
	user := LastUserMessage(req.Messages)
	if user == nil {
		return nil, ErrNoUserMessage
	}
	if req.ID == "" {
		return nil, fmt.Errorf("%w: missing chat id", ErrNoUserMessage)
	}

	chat, err := o.store.GetChatByID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("loading chat: %w", err)
	}
	if chat == nil {
		title := storage.DefaultChatTitle
		if o.titles != nil {
			title = o.titles.Title(ctx, *user)
		}
		if err := o.store.CreateChat(ctx, storage.Chat{ID: req.ID, UserID: req.UserID, Title: title}); err != nil {
			return nil, fmt.Errorf("creating chat: %w", err)
		}
		o.log.Info().Str("chat", req.ID).Str("title", title).Msg("chat created")
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	parts, err := json.Marshal(user.StoredParts())
	if err != nil {
		return nil, fmt.Errorf("encoding user message: %w", err)
	}
	if err := o.store.AddMessages(ctx, []storage.Message{{
		ChatID: req.ID,
		ID:     user.ID,
		Role:   proxy.RoleUser,
		Parts:  parts,
	}}); err != nil {
		return nil, fmt.Errorf("saving user message: %w", err)
	}

	return &Turn{o: o, chatID: req.ID, history: req.Messages, messageID: uuid.NewString()}, nil
}

// Stream runs the tool loop, writing every step to w, and stores the
// assistant reply once generation completes. Cancelling ctx only stops the
// writes: generation runs on until ctx's deadline so the reply is still
// stored after a client hangs up. Errors after the first byte are reported
// in-stream and returned for logging only.
func (t *Turn) Stream(ctx context.Context, w io.Writer) error {
	o := t.o
	sw := NewStreamWriter(ctx, w)
	defs := o.tools.Defs()

	client := ctx
	ctx, cancel := detach(ctx)
	defer cancel()

	msgs := append([]proxy.Message{{Role: proxy.RoleSystem, Content: o.cfg.SystemPrompt}}, ToProviderMessages(t.history)...)

	var (
		parts  []Part
		reason = "stop"
		total  proxy.Usage
	)
	for step := 0; step < o.cfg.MaxSteps; step++ {
		sw.StartStep(t.messageID)
		parts = append(parts, Part{Type: PartStepStart})

		res, err := t.step(ctx, client, sw, msgs, defs)
		if err != nil {
			o.log.Error().Err(err).Str("chat", t.chatID).Int("step", step).Msg("generation failed")
			sw.Error(err.Error())
			return err
		}
		total.PromptTokens += res.Usage.PromptTokens
		total.CompletionTokens += res.Usage.CompletionTokens
		if res.FinishReason != "" {
			reason = res.FinishReason
		}
		if res.Reasoning != "" {
			parts = append(parts, Part{Type: PartReasoning, Reasoning: res.Reasoning})
		}
		if res.Content != "" {
			parts = append(parts, Part{Type: PartText, Text: res.Content})
		}
		msgs = append(msgs, proxy.Message{Role: proxy.RoleAssistant, Content: res.Content, ToolCalls: res.ToolCalls})

		if len(res.ToolCalls) == 0 {
			sw.FinishStep(reason, res.Usage, false)
			break
		}

		for _, tc := range res.ToolCalls {
			sw.ToolCall(tc.ID, tc.Function.Name, argsValue(tc.Function.Arguments))
		}
		results := t.runTools(ctx, res.ToolCalls)
		for i, tc := range res.ToolCalls {
			result := resultValue(results[i])
			sw.ToolResult(tc.ID, result)
			parts = append(parts, Part{Type: PartToolInvocation, ToolInvocation: &ToolInvocation{
				State:      StateResult,
				Step:       step,
				ToolCallID: tc.ID,
				ToolName:   tc.Function.Name,
				Args:       argsValue(tc.Function.Arguments),
				Result:     result,
			}})
			msgs = append(msgs, proxy.Message{Role: proxy.RoleTool, ToolCallID: tc.ID, Content: results[i]})
		}
		reason = "tool-calls"
		sw.FinishStep(reason, res.Usage, false)
	}
	sw.Finish(reason, total)
	if err := sw.Err(); err != nil {
		o.log.Warn().Err(err).Str("chat", t.chatID).Msg("client stream closed early")
	}

	t.save(ctx, parts)
	return nil
}

// step performs one streamed model call, forwarding reasoning as it comes
// and text one word at a time.
func (t *Turn) step(ctx, client context.Context, sw *StreamWriter, msgs []proxy.Message, defs []proxy.ToolDef) (*proxy.StreamResult, error) {
	req, err := proxy.NewChatRequest(t.o.cfg.Model, msgs, defs, true)
	if err != nil {
		return nil, err
	}

	chunker := newWordChunker(client, t.o.cfg.ChunkDelay, func(s string) error {
		sw.Text(s)
		return nil
	})
	res, err := t.o.llm.Stream(ctx, req, func(d proxy.Delta) error {
		if d.Reasoning != "" {
			sw.Reasoning(d.Reasoning)
		}
		if d.Content != "" {
			return chunker.Write(d.Content)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	chunker.Flush()
	return res, nil
}

// runTools executes the calls of one step concurrently. Results keep call
// order; failures, panics included, become {"error": ...} results so the
// model can react.
func (t *Turn) runTools(ctx context.Context, calls []proxy.ToolCall) []string {
	results := make([]string, len(calls))
	var g errgroup.Group
	for i, tc := range calls {
		g.Go(func() error {
			out, err := t.callTool(ctx, tc)
			if err != nil {
				t.o.log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("tool call failed")
				b, _ := json.Marshal(map[string]string{"error": err.Error()})
				out = string(b)
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (t *Turn) callTool(ctx context.Context, tc proxy.ToolCall) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tc.Function.Name, r)
		}
	}()
	return t.o.tools.Call(ctx, tc.Function.Name, tc.Function.Arguments)
}

// detach returns a context that ignores the cancellation of parent but
// keeps its deadline.
func detach(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if deadline, ok := parent.Deadline(); ok {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithCancel(ctx)
}

// save persists the assistant reply. It outlives a cancelled request so a
// client that hangs up still gets its history written.
func (t *Turn) save(ctx context.Context, parts []Part) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	b, err := json.Marshal(parts)
	if err == nil {
		err = t.o.store.AddMessages(ctx, []storage.Message{{
			ChatID: t.chatID,
			ID:     t.messageID,
			Role:   proxy.RoleAssistant,
			Parts:  b,
		}})
	}
	if err != nil {
		t.o.log.Error().Err(err).Str("chat", t.chatID).Msg("failed to save chat")
	}
}

// argsValue returns tool arguments as JSON, substituting an empty object for
// missing or malformed input.
func argsValue(args string) json.RawMessage {
	if args == "" || !json.Valid([]byte(args)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}
