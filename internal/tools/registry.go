// Package tools holds the functions the chat model can call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	lctools "github.com/tmc/langchaingo/tools"

	"github.com/cactux/cactux/internal/proxy"
)

// Tool is a langchaingo tool that also publishes a JSON Schema for its
// input. Call receives the model's JSON arguments verbatim.
type Tool interface {
	lctools.Tool
	Parameters() json.RawMessage
}

// Registry holds tools in registration order.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry creates a registry. Later tools with a duplicate name replace
// earlier ones in place.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool)}
	for _, t := range ts {
		r.Add(t)
	}
	return r
}

// Add registers t, replacing any tool already registered under its name.
func (r *Registry) Add(t Tool) {
	if _, ok := r.byName[t.Name()]; ok {
		for i, existing := range r.tools {
			if existing.Name() == t.Name() {
				r.tools[i] = t
			}
		}
	} else {
		r.tools = append(r.tools, t)
	}
	r.byName[t.Name()] = t
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// All returns the tools in registration order.
func (r *Registry) All() []Tool {
	return append([]Tool(nil), r.tools...)
}

// Defs renders the tools as function definitions for the model.
func (r *Registry) Defs() []proxy.ToolDef {
	defs := make([]proxy.ToolDef, len(r.tools))
	for i, t := range r.tools {
		defs[i] = proxy.NewToolDef(t.Name(), t.Description(), t.Parameters())
	}
	return defs
}

// Call runs the named tool with raw JSON arguments.
func (r *Registry) Call(ctx context.Context, name, args string) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Call(ctx, args)
}

// decodeArgs unmarshals tool arguments; an empty input decodes to the zero value.
func decodeArgs(input string, v any) error {
	if input == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// errorResult is the {"error": "..."} object returned to the model.
func errorResult(msg string) string {
	s, _ := toJSON(map[string]string{"error": msg})
	return s
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one != "" {
			*l = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}
