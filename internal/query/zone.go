package query

import "strings"

// Canonical zone identifiers.
const (
	ZoneCandelas    = "candelas"
	ZoneSalitre     = "salitre"
	ZonePanales     = "panales"
	ZoneSanCayetano = "san cayetano"
	ZoneZelda       = "zelda"
	ZoneComadres    = "comadres"
)

// ZoneAlias maps one free-text phrase to a canonical zone.
type ZoneAlias struct {
	Alias string
	Zone  string
}

// ZoneTable is the alias list scanned by the normalizer. Aliases are tried in
// order and the first substring hit wins, so longer phrases go first.
type ZoneTable struct {
	Aliases []ZoneAlias

	// BoulderKeywords trigger BoulderZone when no alias matched.
	BoulderKeywords []string
	BoulderZone     string
}

// DefaultZoneTable returns the Guadalcazar zone aliases.
func DefaultZoneTable() ZoneTable {
	return ZoneTable{
		Aliases: []ZoneAlias{
			{"gruta de las candelas", ZoneCandelas},
			{"las candelas", ZoneCandelas},
			{"candelas", ZoneCandelas},
			{"joya del salitre", ZoneSalitre},
			{"el salitre", ZoneSalitre},
			{"salitre", ZoneSalitre},
			{"panales", ZonePanales},
			{"san cayetano", ZoneSanCayetano},
			{"san caye", ZoneSanCayetano},
			{"cayetano", ZoneSanCayetano},
			{"cuevas cuatas", ZoneZelda},
			{"zelda", ZoneZelda},
			{"las comadres", ZoneComadres},
			{"el realejo", ZoneComadres},
			{"comadres", ZoneComadres},
			{"realejo", ZoneComadres},
		},
		BoulderKeywords: []string{"boulder"},
		BoulderZone:     ZoneComadres,
	}
}

// ZoneNormalizer maps free text to a canonical zone identifier.
type ZoneNormalizer struct {
	aliases         []ZoneAlias
	boulderKeywords []string
	boulderZone     string
}

// NewZoneNormalizer folds the table once so lookups only fold the input.
func NewZoneNormalizer(t ZoneTable) *ZoneNormalizer {
	n := &ZoneNormalizer{boulderZone: t.BoulderZone}
	for _, a := range t.Aliases {
		n.aliases = append(n.aliases, ZoneAlias{Alias: Fold(a.Alias), Zone: a.Zone})
	}
	for _, k := range t.BoulderKeywords {
		n.boulderKeywords = append(n.boulderKeywords, Fold(k))
	}
	return n
}

// Normalize returns the canonical zone mentioned in text. The boolean is
// false when no zone could be detected.
func (n *ZoneNormalizer) Normalize(text string) (string, bool) {
	t := Fold(text)
	if t == "" {
		return "", false
	}
	for _, a := range n.aliases {
		if strings.Contains(t, a.Alias) {
			return a.Zone, true
		}
	}
	if n.boulderZone != "" {
		for _, k := range n.boulderKeywords {
			if strings.Contains(t, k) {
				return n.boulderZone, true
			}
		}
	}
	return "", false
}

// Zones returns the distinct canonical zones in table order.
func (n *ZoneNormalizer) Zones() []string {
	var out []string
	seen := make(map[string]bool)
	for _, a := range n.aliases {
		if !seen[a.Zone] {
			seen[a.Zone] = true
			out = append(out, a.Zone)
		}
	}
	return out
}
