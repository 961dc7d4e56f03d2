package tools

import (
	"context"
	"encoding/json"

	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/query"
	"github.com/cactux/cactux/internal/retrieval"
)

// Failure texts handed to the model instead of infrastructure errors.
const (
	climbingFailure      = "Error retrieving climbing data"
	accommodationFailure = "Error retrieving accommodation information"
)

// Matcher runs a filtered similarity search.
type Matcher interface {
	Match(ctx context.Context, text string, filter query.Filter) ([]retrieval.Match, error)
}

type climbingTool struct {
	builder *query.Builder
	matcher Matcher
	log     *logging.Logger
}

// NewClimbing returns the "retrieveRelevantClimbingData" tool.
func NewClimbing(b *query.Builder, m Matcher, log *logging.Logger) Tool {
	return &climbingTool{builder: b, matcher: m, log: subLogger(log)}
}

func (t *climbingTool) Name() string { return "retrieveRelevantClimbingData" }

func (t *climbingTool) Description() string {
	return "Search and retrieve relevant climbing information from the Guadalcazar database, including routes, grades, locations, and local amenities based on the user's query"
}

func (t *climbingTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"userQuery": {"type": "string", "description": "The user's query about Guadalcazar climbing areas, routes, or local information"},
			"zone": {"type": "string", "description": "The zone to retrieve climbing data for"},
			"type": {"type": "string", "enum": ["sector_info", "route_group", "boulder_group"], "description": "Type of climbing data to filter by (sector_info, route_group, boulder_group)"},
			"gradeGroup": {"type": "array", "items": {"type": "string"}, "description": "Array of grade groups to filter by (e.g., ['5.13', 'V8'])"}
		},
		"required": ["userQuery"]
	}`)
}

func (t *climbingTool) Call(ctx context.Context, input string) (string, error) {
	var args struct {
		UserQuery  string     `json:"userQuery"`
		Zone       string     `json:"zone"`
		Type       string     `json:"type"`
		GradeGroup stringList `json:"gradeGroup"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}

	filter := t.builder.Climbing(query.ClimbingParams{
		Query:      args.UserQuery,
		Zone:       args.Zone,
		Type:       args.Type,
		GradeGroup: args.GradeGroup,
	})
	t.log.Debug().Str("tool", t.Name()).Interface("filter", filter.Map()).Msg("tool call")

	matches, err := t.matcher.Match(ctx, args.UserQuery, filter)
	if err != nil {
		t.log.Error().Err(err).Str("tool", t.Name()).Msg("climbing retrieval failed")
		return climbingFailure, nil
	}
	return toJSON(retrieval.RouteDocuments(matches))
}

type accommodationTool struct {
	builder *query.Builder
	matcher Matcher
	log     *logging.Logger
}

// NewAccommodation returns the "retrieveAccommodationData" tool.
func NewAccommodation(b *query.Builder, m Matcher, log *logging.Logger) Tool {
	return &accommodationTool{builder: b, matcher: m, log: subLogger(log)}
}

func (t *accommodationTool) Name() string { return "retrieveAccommodationData" }

func (t *accommodationTool) Description() string {
	return "Retrieve accommodation, hostels, hotels, camping, restaurant, stores, gasoline, pharmacies, and general place information from the Guadalcazar database"
}

func (t *accommodationTool) Parameters() json.RawMessage {
	tags, _ := json.Marshal(t.builder.Business().Tags())
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"userQuery": {"type": "string", "description": "The user's query about accommodations, restaurants, or general information about Guadalcazar"},
			"businessType": {"type": "array", "items": {"type": "string", "enum": ` + string(tags) + `}, "description": "Types of business to filter by"}
		}
	}`)
}

func (t *accommodationTool) Call(ctx context.Context, input string) (string, error) {
	var args struct {
		UserQuery    string     `json:"userQuery"`
		BusinessType stringList `json:"businessType"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}

	filter, q := t.builder.Accommodation(query.AccommodationParams{
		Query:        args.UserQuery,
		BusinessType: args.BusinessType,
	})
	t.log.Debug().Str("tool", t.Name()).Str("query", q).Interface("filter", filter.Map()).Msg("tool call")

	matches, err := t.matcher.Match(ctx, q, filter)
	if err != nil {
		t.log.Error().Err(err).Str("tool", t.Name()).Msg("accommodation retrieval failed")
		return accommodationFailure, nil
	}
	if matches == nil {
		matches = []retrieval.Match{}
	}
	return toJSON(matches)
}
