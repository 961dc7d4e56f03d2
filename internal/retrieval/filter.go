package retrieval

import (
	"strings"
	"unicode"

	"github.com/cactux/cactux/internal/query"
)

// matchesFilter applies the filter semantics of match_advanced_data to a
// metadata map, for backends that filter in process.
//
//   - source: equal to, or contained in, the record's source list
//   - type: equal
//   - grade_group: the record's group covers one of the requested grades
//   - business_type: the record's types intersect the requested ones
func matchesFilter(meta map[string]any, f query.Filter) bool {
	if f.Source != "" && !containsFold(metaStrings(meta["source"]), f.Source) {
		return false
	}
	if f.Type != "" && !containsFold(metaStrings(meta["type"]), f.Type) {
		return false
	}
	if len(f.GradeGroup) > 0 && !anyGradeInGroups(f.GradeGroup, metaStrings(meta["grade_group"])) {
		return false
	}
	if len(f.BusinessType) > 0 {
		have := metaStrings(meta["business_type"])
		hit := false
		for _, want := range f.BusinessType {
			if containsFold(have, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// metaStrings reads a metadata value that may be a string or a list.
func metaStrings(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), want) {
			return true
		}
	}
	return false
}

func anyGradeInGroups(grades, groups []string) bool {
	for _, g := range grades {
		for _, group := range groups {
			if gradeInGroup(g, group) || gradeInGroup(group, g) {
				return true
			}
		}
	}
	return false
}

// gradeInGroup reports whether grade belongs to group: "5.11a" and "5.11+"
// belong to "5.11", but "V10" does not belong to "V1".
func gradeInGroup(grade, group string) bool {
	grade = strings.ToLower(strings.TrimSpace(grade))
	group = strings.ToLower(strings.TrimSpace(group))
	if group == "" || !strings.HasPrefix(grade, group) {
		return false
	}
	rest := grade[len(group):]
	return rest == "" || !unicode.IsDigit(rune(rest[0]))
}
