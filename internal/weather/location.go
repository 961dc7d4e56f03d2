package weather

import "github.com/cactux/cactux/internal/query"

// DefaultLocation is reported when the input names no known zone.
const DefaultLocation = "Guadalcazar"

// locationNames maps folded zone aliases to the names stored in the
// location tables.
var locationNames = map[string]string{
	"gruta de las candelas": "Gruta de las Candelas",
	"las candelas":          "Gruta de las Candelas",
	"candelas":              "Gruta de las Candelas",
	"joya del salitre":      "Joya del Salitre",
	"el salitre":            "Joya del Salitre",
	"salitre":               "Joya del Salitre",
	"panales":               "Panales",
	"san cayetano":          "San Cayetano",
	"san caye":              "San Cayetano",
	"cayetano":              "San Cayetano",
	"zelda":                 "Zelda",
	"cuevas cuatas":         "Zelda",
	"guadalcazar":           DefaultLocation,
}

// NormalizeLocation maps a zone alias to its display name. Matching is exact
// after folding; anything else is DefaultLocation.
func NormalizeLocation(s string) string {
	if name, ok := locationNames[query.Fold(s)]; ok {
		return name
	}
	return DefaultLocation
}
