package tools

import (
	"context"
	"encoding/json"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/weather"
)

// WeatherReporter produces a forecast report for a zone.
type WeatherReporter interface {
	Report(ctx context.Context, location string) (*weather.Report, error)
}

type weatherTool struct {
	svc WeatherReporter
	log *logging.Logger
}

// NewWeather returns the "weather" tool.
func NewWeather(svc WeatherReporter, log *logging.Logger) Tool {
	return &weatherTool{svc: svc, log: subLogger(log)}
}

func (t *weatherTool) Name() string { return "weather" }

func (t *weatherTool) Description() string {
	return "Get current and forecast weather for a climbing location, give the user the max and min temperature for the next 5 days."
}

func (t *weatherTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"location": {"type": "string", "description": "The climbing zone to get weather for"}
		},
		"required": ["location"]
	}`)
}

func (t *weatherTool) Call(ctx context.Context, input string) (string, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	t.log.Debug().Str("tool", t.Name()).Str("location", args.Location).Msg("tool call")

	rep, err := t.svc.Report(ctx, args.Location)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return toJSON(rep)
}

func subLogger(l *logging.Logger) *logging.Logger {
	if l == nil {
		l = logging.Nop()
	}
	return l.Sub("tools")
}
