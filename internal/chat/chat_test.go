package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactux/cactux/internal/proxy"
	"github.com/cactux/cactux/internal/storage"
	"github.com/cactux/cactux/internal/tools"
)

type memStore struct {
	mu       sync.Mutex
	chats    map[string]storage.Chat
	messages []storage.Message
	creates  int
	addErr   error
}

func newMemStore() *memStore { return &memStore{chats: map[string]storage.Chat{}} }

func (s *memStore) CreateChat(ctx context.Context, c storage.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if _, ok := s.chats[c.ID]; !ok {
		s.chats[c.ID] = c
	}
	return nil
}

func (s *memStore) GetChatByID(ctx context.Context, id string) (*storage.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memStore) AddMessages(ctx context.Context, msgs []storage.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.messages = append(s.messages, msgs...)
	return nil
}

func (s *memStore) byRole(role string) []storage.Message {
	var out []storage.Message
	for _, m := range s.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// scriptedLLM replays one result per step, streaming content in the given
// pieces.
type scriptedLLM struct {
	steps    []scriptedStep
	requests []proxy.ChatRequest
}

type scriptedStep struct {
	pieces    []string
	reasoning string
	calls     []proxy.ToolCall
	err       error
}

func (l *scriptedLLM) Stream(ctx context.Context, req proxy.ChatRequest, onDelta func(proxy.Delta) error) (*proxy.StreamResult, error) {
	l.requests = append(l.requests, req)
	if len(l.requests) > len(l.steps) {
		return nil, errors.New("unexpected model call")
	}
	st := l.steps[len(l.requests)-1]
	if st.err != nil {
		return nil, st.err
	}
	if st.reasoning != "" {
		if err := onDelta(proxy.Delta{Reasoning: st.reasoning}); err != nil {
			return nil, err
		}
	}
	for _, p := range st.pieces {
		if err := onDelta(proxy.Delta{Content: p}); err != nil {
			return nil, err
		}
	}
	res := &proxy.StreamResult{Content: strings.Join(st.pieces, ""), Reasoning: st.reasoning, ToolCalls: st.calls, FinishReason: "stop"}
	if len(st.calls) > 0 {
		res.FinishReason = "tool_calls"
	}
	return res, nil
}

type fixedTitler string

func (f fixedTitler) Title(context.Context, UIMessage) string { return string(f) }

type echoTool struct{ name string }

func (e echoTool) Name() string                { return e.name }
func (e echoTool) Description() string         { return "echo" }
func (e echoTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (e echoTool) Call(ctx context.Context, input string) (string, error) {
	if strings.Contains(input, "boom") {
		return "", errors.New("boom")
	}
	if strings.Contains(input, "panic") {
		panic("nil sector")
	}
	return `{"echo":` + input + `}`, nil
}

var _ tools.Tool = echoTool{}

func userRequest(chatID, text string) Request {
	return Request{ID: chatID, UserID: "u1", Messages: []UIMessage{
		{ID: "m1", Role: "user", Content: text, Parts: []Part{{Type: PartText, Text: text}}},
	}}
}

func streamLines(t *testing.T, out string) []string {
	t.Helper()
	return strings.Split(strings.TrimSuffix(out, "\n"), "\n")
}

func TestPrepare_NoUserMessage(t *testing.T) {
	o := NewOrchestrator(newMemStore(), &scriptedLLM{}, nil, nil, Config{}, nil)

	_, err := o.Prepare(context.Background(), Request{ID: "c1", Messages: []UIMessage{{Role: "assistant", Content: "hola"}}})
	assert.ErrorIs(t, err, ErrNoUserMessage)

	_, err = o.Prepare(context.Background(), Request{Messages: []UIMessage{{Role: "user", Content: "hola"}}})
	assert.ErrorIs(t, err, ErrNoUserMessage)
}

func TestPrepare_CreatesChatOnce(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &scriptedLLM{}, nil, fixedTitler("Rutas en Candelas"), Config{}, nil)

	_, err := o.Prepare(context.Background(), userRequest("c1", "rutas en candelas"))
	require.NoError(t, err)
	req := userRequest("c1", "y en salitre?")
	req.Messages[0].ID = "m2"
	_, err = o.Prepare(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, store.creates)
	assert.Equal(t, storage.Chat{ID: "c1", UserID: "u1", Title: "Rutas en Candelas"}, store.chats["c1"])
	require.Len(t, store.messages, 2)
	assert.JSONEq(t, `[{"type":"text","text":"rutas en candelas"}]`, string(store.messages[0].Parts))
}

func TestPrepare_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.addErr = errors.New("disk full")
	o := NewOrchestrator(store, &scriptedLLM{}, nil, nil, Config{}, nil)

	_, err := o.Prepare(context.Background(), userRequest("c1", "hola"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoUserMessage)
	assert.Equal(t, storage.DefaultChatTitle, store.chats["c1"].Title)
}

func TestTurn_PlainAnswer(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{steps: []scriptedStep{{pieces: []string{"Hola, esca", "lador. Listo"}}}}
	o := NewOrchestrator(store, llm, nil, nil, Config{Model: "m"}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "hola"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, turn.Stream(context.Background(), &buf))

	lines := streamLines(t, buf.String())
	assert.Equal(t, []string{
		`f:{"messageId":"` + turn.MessageID() + `"}`,
		`0:"Hola, "`,
		`0:"escalador. "`,
		`0:"Listo"`,
		`e:{"finishReason":"stop","usage":{"promptTokens":0,"completionTokens":0},"isContinued":false}`,
		`d:{"finishReason":"stop","usage":{"promptTokens":0,"completionTokens":0}}`,
	}, lines)

	assistant := store.byRole("assistant")
	require.Len(t, assistant, 1)
	assert.Equal(t, turn.MessageID(), assistant[0].ID)
	assert.NotEmpty(t, assistant[0].ID)
	assert.JSONEq(t, `[{"type":"step-start"},{"type":"text","text":"Hola, escalador. Listo"}]`, string(assistant[0].Parts))

	var sent []proxy.Message
	require.NoError(t, json.Unmarshal(llm.requests[0].Messages, &sent))
	require.Len(t, sent, 2)
	assert.Equal(t, proxy.RoleSystem, sent[0].Role)
	assert.Equal(t, SystemPrompt, sent[0].Content)
	assert.Equal(t, proxy.Message{Role: "user", Content: "hola"}, sent[1])
}

func TestTurn_ToolLoop(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{steps: []scriptedStep{
		{calls: []proxy.ToolCall{
			{ID: "t1", Type: "function", Function: proxy.FunctionCall{Name: "echo", Arguments: `{"a":1}`}},
			{ID: "t2", Type: "function", Function: proxy.FunctionCall{Name: "echo", Arguments: `{"boom":true}`}},
			{ID: "t3", Type: "function", Function: proxy.FunctionCall{Name: "missing", Arguments: ``}},
		}},
		{reasoning: "pensando", pieces: []string{"Ahí tienes."}},
	}}
	reg := tools.NewRegistry(echoTool{name: "echo"})
	o := NewOrchestrator(store, llm, reg, nil, Config{Model: "m"}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "dame rutas"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, turn.Stream(context.Background(), &buf))

	lines := streamLines(t, buf.String())
	f := `f:{"messageId":"` + turn.MessageID() + `"}`
	assert.Equal(t, []string{
		f,
		`9:{"toolCallId":"t1","toolName":"echo","args":{"a":1}}`,
		`9:{"toolCallId":"t2","toolName":"echo","args":{"boom":true}}`,
		`9:{"toolCallId":"t3","toolName":"missing","args":{}}`,
		`a:{"toolCallId":"t1","result":{"echo":{"a":1}}}`,
		`a:{"toolCallId":"t2","result":{"error":"boom"}}`,
		`a:{"toolCallId":"t3","result":{"error":"unknown tool \"missing\""}}`,
		`e:{"finishReason":"tool-calls","usage":{"promptTokens":0,"completionTokens":0},"isContinued":false}`,
		f,
		`g:"pensando"`,
		`0:"Ahí "`,
		`0:"tienes."`,
		`e:{"finishReason":"stop","usage":{"promptTokens":0,"completionTokens":0},"isContinued":false}`,
		`d:{"finishReason":"stop","usage":{"promptTokens":0,"completionTokens":0}}`,
	}, lines)

	require.Len(t, llm.requests, 2)
	var second []proxy.Message
	require.NoError(t, json.Unmarshal(llm.requests[1].Messages, &second))
	require.Len(t, second, 6)
	assert.Len(t, second[2].ToolCalls, 3)
	assert.Equal(t, proxy.Message{Role: "tool", ToolCallID: "t1", Content: `{"echo":{"a":1}}`}, second[3])
	assert.Equal(t, "t3", second[5].ToolCallID)

	assistant := store.byRole("assistant")
	require.Len(t, assistant, 1)
	var parts []Part
	require.NoError(t, json.Unmarshal(assistant[0].Parts, &parts))
	types := make([]string, len(parts))
	for i, p := range parts {
		types[i] = p.Type
	}
	assert.Equal(t, []string{"step-start", "tool-invocation", "tool-invocation", "tool-invocation", "step-start", "reasoning", "text"}, types)
	assert.Equal(t, "echo", parts[1].ToolInvocation.ToolName)
	assert.Equal(t, StateResult, parts[1].ToolInvocation.State)
}

func TestTurn_MaxSteps(t *testing.T) {
	call := []proxy.ToolCall{{ID: "t", Type: "function", Function: proxy.FunctionCall{Name: "echo", Arguments: `{}`}}}
	llm := &scriptedLLM{steps: []scriptedStep{{calls: call}, {calls: call}, {calls: call}}}
	o := NewOrchestrator(newMemStore(), llm, tools.NewRegistry(echoTool{name: "echo"}), nil, Config{MaxSteps: 2}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "loop"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, turn.Stream(context.Background(), &buf))

	assert.Len(t, llm.requests, 2)
	lines := streamLines(t, buf.String())
	assert.Equal(t, `d:{"finishReason":"tool-calls","usage":{"promptTokens":0,"completionTokens":0}}`, lines[len(lines)-1])
}

func TestTurn_GenerationErrorIsStreamed(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{steps: []scriptedStep{{err: errors.New("upstream 503")}}}
	o := NewOrchestrator(store, llm, nil, nil, Config{}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "hola"))
	require.NoError(t, err)
	var buf bytes.Buffer
	assert.Error(t, turn.Stream(context.Background(), &buf))

	lines := streamLines(t, buf.String())
	assert.Equal(t, `3:"upstream 503"`, lines[len(lines)-1])
	assert.Empty(t, store.byRole("assistant"))
}

func TestTurn_SaveFailureIsSwallowed(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{steps: []scriptedStep{{pieces: []string{"ok"}}}}
	o := NewOrchestrator(store, llm, nil, nil, Config{}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "hola"))
	require.NoError(t, err)
	store.addErr = errors.New("db down")

	var buf bytes.Buffer
	assert.NoError(t, turn.Stream(context.Background(), &buf))
	assert.Contains(t, buf.String(), `0:"ok"`)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestTurn_ClientGoneStillSaves(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{steps: []scriptedStep{{pieces: []string{"uno dos tres"}}}}
	o := NewOrchestrator(store, llm, nil, nil, Config{ChunkDelay: 10 * time.Millisecond}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "hola"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, turn.Stream(ctx, failingWriter{}))

	assistant := store.byRole("assistant")
	require.Len(t, assistant, 1)
	assert.Contains(t, string(assistant[0].Parts), `"text":"uno dos tres"`)
}

func TestTurn_CancelledClientGetsNoWrites(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{steps: []scriptedStep{{pieces: []string{"uno ", "dos"}}}}
	o := NewOrchestrator(store, llm, nil, nil, Config{ChunkDelay: time.Hour}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "hola"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	require.NoError(t, turn.Stream(ctx, &buf))

	assert.Empty(t, buf.String())
	assert.Len(t, store.byRole("assistant"), 1)
}

func TestTurn_DeadlineStillStopsGeneration(t *testing.T) {
	store := newMemStore()
	llm := &blockingLLM{}
	o := NewOrchestrator(store, llm, nil, nil, Config{}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "hola"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, turn.Stream(ctx, &bytes.Buffer{}), context.DeadlineExceeded)
	assert.Empty(t, store.byRole("assistant"))
}

// blockingLLM waits for its context to end.
type blockingLLM struct{}

func (blockingLLM) Stream(ctx context.Context, _ proxy.ChatRequest, _ func(proxy.Delta) error) (*proxy.StreamResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTurn_ToolPanicBecomesErrorResult(t *testing.T) {
	store := newMemStore()
	llm := &scriptedLLM{steps: []scriptedStep{
		{calls: []proxy.ToolCall{
			{ID: "t1", Type: "function", Function: proxy.FunctionCall{Name: "echo", Arguments: `{"panic":true}`}},
			{ID: "t2", Type: "function", Function: proxy.FunctionCall{Name: "echo", Arguments: `{"a":1}`}},
		}},
		{pieces: []string{"listo"}},
	}}
	o := NewOrchestrator(store, llm, tools.NewRegistry(echoTool{name: "echo"}), nil, Config{}, nil)

	turn, err := o.Prepare(context.Background(), userRequest("c1", "hola"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, turn.Stream(context.Background(), &buf))

	assert.Contains(t, buf.String(), `a:{"toolCallId":"t1","result":{"error":"tool echo panicked: nil sector"}}`)
	assert.Contains(t, buf.String(), `a:{"toolCallId":"t2","result":{"echo":{"a":1}}}`)
	assert.Len(t, store.byRole("assistant"), 1)
}
