package chat

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/proxy"
	"github.com/cactux/cactux/internal/storage"
)

const maxTitleRunes = 80

// Completer is the non-streamed model call.
type Completer interface {
	Complete(ctx context.Context, req proxy.ChatRequest) (*proxy.Completion, error)
}

// Titler names a new chat after its first user message. It never fails;
// implementations fall back to storage.DefaultChatTitle.
type Titler interface {
	Title(ctx context.Context, first UIMessage) string
}

// TitleGenerator asks a small model for a short Spanish title.
type TitleGenerator struct {
	client Completer
	model  string
	log    *logging.Logger
}

// NewTitleGenerator creates a generator that calls model through c.
func NewTitleGenerator(c Completer, model string, log *logging.Logger) *TitleGenerator {
	if log == nil {
		log = logging.Nop()
	}
	return &TitleGenerator{client: c, model: model, log: log.Sub("chat")}
}

func (g *TitleGenerator) Title(ctx context.Context, first UIMessage) string {
	prompt, err := json.Marshal(first)
	if err != nil {
		g.log.Warn().Err(err).Msg("encoding title prompt")
		return storage.DefaultChatTitle
	}
	req, err := proxy.NewChatRequest(g.model, []proxy.Message{
		{Role: proxy.RoleSystem, Content: titlePrompt},
		{Role: proxy.RoleUser, Content: string(prompt)},
	}, nil, false)
	if err != nil {
		g.log.Warn().Err(err).Msg("building title request")
		return storage.DefaultChatTitle
	}

	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		g.log.Warn().Err(err).Msg("title generation failed")
		return storage.DefaultChatTitle
	}
	title := sanitizeTitle(resp.Message.Content)
	if title == "" {
		return storage.DefaultChatTitle
	}
	return title
}

var titleReplacer = strings.NewReplacer(
	`"`, "", "'", "", "“", "", "”", "", "«", "", "»", "", "`", "",
	":", " ",
)

// sanitizeTitle strips quotes and colons, collapses whitespace and caps the
// result at maxTitleRunes.
func sanitizeTitle(s string) string {
	s = titleReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxTitleRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxTitleRunes]))
	}
	return s
}
