package query

import (
	"slices"
	"strings"
)

// Fixed values carried by every accommodation search.
const (
	SourceAccommodation       = "accommodation"
	DefaultAccommodationQuery = "accommodation in Guadalcazar"
)

// Filter is the set of metadata constraints passed to a similarity search.
// The zero value means an unfiltered search.
type Filter struct {
	Source       string
	Type         string
	GradeGroup   []string
	BusinessType []string
}

// IsEmpty reports whether f constrains nothing.
func (f Filter) IsEmpty() bool {
	return f.Source == "" && f.Type == "" && len(f.GradeGroup) == 0 && len(f.BusinessType) == 0
}

// Map renders f with the key names the search procedure expects. Empty
// fields are omitted.
func (f Filter) Map() map[string]any {
	m := make(map[string]any)
	if f.Source != "" {
		m["source"] = f.Source
	}
	if f.Type != "" {
		m["type"] = f.Type
	}
	if len(f.GradeGroup) > 0 {
		m["grade_group"] = f.GradeGroup
	}
	if len(f.BusinessType) > 0 {
		m["business_type"] = f.BusinessType
	}
	return m
}

// ClimbingParams are the caller-supplied inputs of a climbing search.
type ClimbingParams struct {
	Query      string
	Zone       string
	Type       string
	GradeGroup []string
}

// AccommodationParams are the caller-supplied inputs of a business search.
type AccommodationParams struct {
	Query        string
	BusinessType []string
}

// Builder composes the detectors into filters. Explicit parameters always
// win over detection, except business types, which are merged.
type Builder struct {
	zones    *ZoneNormalizer
	grades   *GradeDetector
	business *BusinessDetector
}

// NewBuilder creates a Builder from its three detectors.
func NewBuilder(zones *ZoneNormalizer, grades *GradeDetector, business *BusinessDetector) *Builder {
	return &Builder{zones: zones, grades: grades, business: business}
}

// NewDefaultBuilder wires the default Guadalcazar tables.
func NewDefaultBuilder() *Builder {
	return NewBuilder(
		NewZoneNormalizer(DefaultZoneTable()),
		NewGradeDetector(DefaultDisciplines()),
		NewBusinessDetector(DefaultCategories()),
	)
}

// Zones exposes the zone normalizer.
func (b *Builder) Zones() *ZoneNormalizer { return b.zones }

// Business exposes the business detector.
func (b *Builder) Business() *BusinessDetector { return b.business }

// Climbing builds the filter for a climbing-data search.
func (b *Builder) Climbing(p ClimbingParams) Filter {
	var f Filter

	// An explicit zone is authoritative even when it does not resolve, which
	// is how the model asks for the whole region.
	zoneText := p.Query
	if strings.TrimSpace(p.Zone) != "" {
		zoneText = p.Zone
	}
	if z, ok := b.zones.Normalize(zoneText); ok {
		f.Source = z
	}

	if t := strings.TrimSpace(p.Type); slices.Contains(ClimbingTypes, t) {
		f.Type = t
	} else {
		f.Type = b.grades.Discipline(p.Query)
	}

	if grades := nonEmpty(p.GradeGroup); len(grades) > 0 {
		f.GradeGroup = grades
	} else {
		f.GradeGroup = Grades(p.Query)
	}
	return f
}

// Accommodation builds the filter for a business search. It also returns the
// effective query text, which falls back to DefaultAccommodationQuery.
func (b *Builder) Accommodation(p AccommodationParams) (Filter, string) {
	q := strings.TrimSpace(p.Query)
	if q == "" {
		q = DefaultAccommodationQuery
	}
	return Filter{
		Source:       SourceAccommodation,
		Type:         TypeBusinessInfo,
		BusinessType: b.business.Detect(q, p.BusinessType...),
	}, q
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
