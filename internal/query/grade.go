package query

import (
	"regexp"
	"strings"
)

// Climbing data types understood by the similarity search.
const (
	TypeSectorInfo   = "sector_info"
	TypeRouteGroup   = "route_group"
	TypeBoulderGroup = "boulder_group"
	TypeBusinessInfo = "business_info"
)

// ClimbingTypes lists the types a caller may request explicitly.
var ClimbingTypes = []string{TypeSectorInfo, TypeRouteGroup, TypeBoulderGroup}

// DisciplineTable holds the trigger words for each discipline.
type DisciplineTable struct {
	Boulder []string
	Route   []string
}

// DefaultDisciplines returns the Spanish/English discipline keywords.
func DefaultDisciplines() DisciplineTable {
	return DisciplineTable{
		Boulder: []string{"boulder", "boulders", "bouldering", "bloque", "bloques", "bulder", "bulders"},
		Route:   []string{"ruta", "rutas", "sport", "via", "vias", "vía", "deportiva", "depo"},
	}
}

var (
	boulderGradeRe = regexp.MustCompile(`(?i)\bV\d+\b`)
	routeGradeRe   = regexp.MustCompile(`(?i)\b5\.\d+[a-d]?[+-]?`)
)

// Detection is the output of GradeDetector.Detect.
type Detection struct {
	// Discipline is TypeBoulderGroup, TypeRouteGroup or empty when the text
	// names neither or both.
	Discipline string
	Grades     []string
}

// GradeDetector extracts discipline and grade tokens from free text.
type GradeDetector struct {
	boulder []string
	route   []string
}

// NewGradeDetector folds the discipline table once.
func NewGradeDetector(t DisciplineTable) *GradeDetector {
	d := &GradeDetector{}
	for _, k := range t.Boulder {
		d.boulder = append(d.boulder, Fold(k))
	}
	for _, k := range t.Route {
		d.route = append(d.route, Fold(k))
	}
	return d
}

// Detect returns the discipline and the grade tokens found in text. Boulder
// grades come before route grades; each keeps text order and its original
// spelling.
func (d *GradeDetector) Detect(text string) Detection {
	return Detection{
		Discipline: d.Discipline(text),
		Grades:     Grades(text),
	}
}

// Discipline keyword-tests text for each discipline independently.
func (d *GradeDetector) Discipline(text string) string {
	t := Fold(text)
	isBoulder := anyWordPrefix(t, d.boulder)
	isRoute := anyWordPrefix(t, d.route)
	switch {
	case isBoulder && isRoute:
		return ""
	case isBoulder:
		return TypeBoulderGroup
	case isRoute:
		return TypeRouteGroup
	}
	return ""
}

// Grades extracts V-scale and YDS grade tokens. Repeated tokens are kept
// once, in the spelling they first appear with; case does not make a new
// grade.
func Grades(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{boulderGradeRe, routeGradeRe} {
		for _, m := range re.FindAllString(text, -1) {
			key := strings.ToUpper(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, m)
		}
	}
	return out
}

func anyWordPrefix(text string, keywords []string) bool {
	for _, k := range keywords {
		if containsWordPrefix(text, k) {
			return true
		}
	}
	return false
}
