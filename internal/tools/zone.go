package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/proxy"
	"github.com/cactux/cactux/internal/query"
)

// RegionZone is reported when the query is about the area as a whole.
const RegionZone = "guadalcazar"

// ZoneClassifier guesses a zone id for text the alias table cannot resolve.
// It returns "" when unsure.
type ZoneClassifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Completer is the non-streamed half of the model client.
type Completer interface {
	Complete(ctx context.Context, req proxy.ChatRequest) (*proxy.Completion, error)
}

const zoneClassifierPrompt = `You are a climbing zone identifier for Guadalcazar. Your task is to identify which zone the user is asking about.

Available zones and their alternative names:
- Gruta de las Candelas (also known as: Las Candelas, Candelas)
- Joya del Salitre (also known as: Salitre, El Salitre)
- Panales
- San Cayetano (also known as: San caye, Cayetano)
- Zelda (also known as: Cuevas cuatas)
- Las comadres (also known as: Comadres, Realejo)

Respond ONLY with a JSON object {"zone": value} where value is one of:
"candelas", "salitre", "panales", "cayetano", "zelda", "comadres",
"guadalcazar" (if the query is about the general area) or null (if no zone can be confidently identified).
Handle typos and variations intelligently.`

// LLMZoneClassifier asks a chat model to pick a zone.
type LLMZoneClassifier struct {
	client Completer
	model  string
}

// NewLLMZoneClassifier creates a classifier that asks model through c.
func NewLLMZoneClassifier(c Completer, model string) *LLMZoneClassifier {
	return &LLMZoneClassifier{client: c, model: model}
}

func (c *LLMZoneClassifier) Classify(ctx context.Context, text string) (string, error) {
	req, err := proxy.NewChatRequest(c.model, []proxy.Message{
		{Role: proxy.RoleSystem, Content: zoneClassifierPrompt},
		{Role: proxy.RoleUser, Content: "Identify the climbing zone from this query: " + text},
	}, nil, false)
	if err != nil {
		return "", err
	}
	if err := req.Set("response_format", map[string]string{"type": "json_object"}); err != nil {
		return "", err
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return parseZoneAnswer(resp.Message.Content), nil
}

// parseZoneAnswer accepts {"zone": "x"}, a bare JSON string or plain text.
func parseZoneAnswer(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.Trim(s, "` \n")

	var obj struct {
		Zone *string `json:"zone"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		if obj.Zone == nil {
			return ""
		}
		return strings.TrimSpace(*obj.Zone)
	}
	var str string
	if err := json.Unmarshal([]byte(s), &str); err == nil {
		return strings.TrimSpace(str)
	}
	if strings.EqualFold(s, "null") {
		return ""
	}
	return strings.Trim(s, `"' `)
}

type zoneTool struct {
	zones      *query.ZoneNormalizer
	classifier ZoneClassifier
	log        *logging.Logger
}

// NewIdentifyZone returns the "identifyZone" tool. classifier may be nil.
func NewIdentifyZone(zones *query.ZoneNormalizer, classifier ZoneClassifier, log *logging.Logger) Tool {
	return &zoneTool{zones: zones, classifier: classifier, log: subLogger(log)}
}

func (t *zoneTool) Name() string { return "identifyZone" }

func (t *zoneTool) Description() string {
	return "Identify which climbing zone in Guadalcazar the user is asking about"
}

func (t *zoneTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"userQuery": {"type": "string", "description": "The user's query about Guadalcazar climbing, returns the complete user query"}
		},
		"required": ["userQuery"]
	}`)
}

// Call answers with a JSON string zone id, or null.
func (t *zoneTool) Call(ctx context.Context, input string) (string, error) {
	var args struct {
		UserQuery string `json:"userQuery"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}

	zone := t.identify(ctx, args.UserQuery)
	t.log.Debug().Str("tool", t.Name()).Str("zone", zone).Msg("tool call")
	if zone == "" {
		return "null", nil
	}
	return toJSON(zone)
}

func (t *zoneTool) identify(ctx context.Context, text string) string {
	if z, ok := t.zones.Normalize(text); ok {
		return z
	}

	if t.classifier != nil {
		guess, err := t.classifier.Classify(ctx, text)
		if err != nil {
			t.log.Warn().Err(err).Msg("zone classifier failed")
		} else if z := t.canonical(guess); z != "" {
			return z
		}
	}

	if strings.Contains(query.Fold(text), RegionZone) {
		return RegionZone
	}
	return ""
}

// canonical maps a classifier answer onto the alias table, rejecting
// anything that is not a known zone.
func (t *zoneTool) canonical(guess string) string {
	g := query.Fold(guess)
	if g == "" || g == "null" {
		return ""
	}
	if g == RegionZone {
		return RegionZone
	}
	if z, ok := t.zones.Normalize(g); ok {
		return z
	}
	return ""
}
