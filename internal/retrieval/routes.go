package retrieval

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Route is one climbing route or boulder problem listed in a document.
type Route struct {
	ID          string `json:"id"`
	SectorID    string `json:"sectorId"`
	Name        string `json:"name"`
	Grade       string `json:"grade"`
	Type        string `json:"type"`
	Quality     int    `json:"quality"`
	Bolts       *int   `json:"bolts,omitempty"`
	Description string `json:"description"`
}

// RouteDocument is the model-facing shape of a matched climbing document.
type RouteDocument struct {
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
	Routes  []Route `json:"routes"`
}

const (
	routeHeader   = "## "
	fieldPrefix   = "- **"
	fieldID       = "- **ID:**"
	fieldSectorID = "- **Sector ID:**"
	fieldGrade    = "- **Grado:**"
	fieldType     = "- **Tipo:**"
	fieldQuality  = "- **Calidad:**"
	fieldBolts    = "- **Bolts:**"
)

// ParseRoutes scans markdown-like content for route blocks. A block opens
// with "## name" and is followed by "- **Field:** value" lines. Unknown or
// malformed lines are skipped and missing fields stay zero.
func ParseRoutes(content string) []Route {
	lines := strings.Split(content, "\n")
	routes := []Route{}
	var cur *Route

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, routeHeader):
			if cur != nil && cur.Name != "" {
				routes = append(routes, *cur)
			}
			cur = &Route{Name: strings.TrimSpace(line[len(routeHeader):])}
		case cur == nil:
			// Text before the first header belongs to no route.
		case strings.HasPrefix(line, fieldID):
			cur.ID = fieldValue(line, fieldID)
		case strings.HasPrefix(line, fieldSectorID):
			cur.SectorID = fieldValue(line, fieldSectorID)
		case strings.HasPrefix(line, fieldGrade):
			cur.Grade = fieldValue(line, fieldGrade)
		case strings.HasPrefix(line, fieldType):
			cur.Type = fieldValue(line, fieldType)
		case strings.HasPrefix(line, fieldQuality):
			cur.Quality, _ = leadingInt(fieldValue(line, fieldQuality))
		case strings.HasPrefix(line, fieldBolts):
			if n, ok := leadingInt(fieldValue(line, fieldBolts)); ok && n > 0 {
				cur.Bolts = &n
			}
		case line != "" && !strings.HasPrefix(line, fieldPrefix):
			if i == len(lines)-1 || !strings.HasPrefix(strings.TrimSpace(lines[i+1]), fieldPrefix) {
				cur.Description = line
			}
		}
	}
	if cur != nil && cur.Name != "" {
		routes = append(routes, *cur)
	}
	return routes
}

// RouteDocuments converts matches into their route-level view. Structured
// routes under metadata "routes" win over scraping the content.
func RouteDocuments(matches []Match) []RouteDocument {
	out := make([]RouteDocument, 0, len(matches))
	for _, m := range matches {
		routes, ok := metadataRoutes(m.Metadata)
		if !ok {
			routes = ParseRoutes(m.Content)
		}
		out = append(out, RouteDocument{Title: m.Title, Summary: m.Summary, Routes: routes})
	}
	return out
}

func metadataRoutes(meta map[string]any) ([]Route, bool) {
	raw, ok := meta["routes"]
	if !ok || raw == nil {
		return nil, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var routes []Route
	if err := json.Unmarshal(b, &routes); err != nil {
		return nil, false
	}
	if routes == nil {
		routes = []Route{}
	}
	return routes, true
}

func fieldValue(line, prefix string) string {
	return strings.TrimSpace(line[len(prefix):])
}

// leadingInt parses an optional sign and the digits that follow it,
// ignoring anything after: "4 estrellas" is 4.
func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
