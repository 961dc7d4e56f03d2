package query

// Business category tags.
const (
	BusinessRestaurant   = "restaurant"
	BusinessCafe         = "cafe"
	BusinessHostel       = "hostel"
	BusinessHotel        = "hotel"
	BusinessPrivateRooms = "private_rooms"
	BusinessCamping      = "camping"
	BusinessCerveza      = "cerveza"
	BusinessMezcal       = "mezcal"
	BusinessVino         = "vino"
	BusinessLicor        = "licor"
	BusinessGasolina     = "gasolina"
	BusinessMecanico     = "mecanico"
	BusinessCarniceria   = "carniceria"
	BusinessMercado      = "mercado"
	BusinessAbarrotes    = "abarrotes"
	BusinessFarmacias    = "farmacias"
	BusinessGym          = "gym"
	BusinessHelados      = "helados"
	BusinessOther        = "other"
)

// Category is one business tag and the phrases that trigger it.
type Category struct {
	Tag      string
	Keywords []string
}

// DefaultCategories returns the bilingual business taxonomy. "other" has no
// keywords and is only ever set explicitly.
func DefaultCategories() []Category {
	return []Category{
		{BusinessRestaurant, []string{"restaurante", "restaurant", "comida", "comer", "cenar", "cena", "desayunar", "desayuno", "almorzar", "almuerzo", "fonda", "food", "eat", "dinner", "lunch", "breakfast"}},
		{BusinessCafe, []string{"cafe", "café", "cafeteria", "coffee"}},
		{BusinessHostel, []string{"hostal", "hostel", "backpacker", "dormitorio", "dorm", "cuartos compartidos", "shared room"}},
		{BusinessHotel, []string{"hotel", "motel", "inn", "lodge"}},
		{BusinessPrivateRooms, []string{"cuartos privados", "cuarto privado", "habitación privada", "habitaciones privadas", "airbnb", "private room"}},
		{BusinessCamping, []string{"camp", "camping", "campsite", "tent", "acampar", "campamento", "carpa", "casa de campaña"}},
		{BusinessCerveza, []string{"cerveza", "cerveceria", "chela", "caguama", "beer", "brewery"}},
		{BusinessMezcal, []string{"mezcal", "mezcaleria", "mescal"}},
		{BusinessVino, []string{"vino", "vinos", "vinoteca", "wine", "winery"}},
		{BusinessLicor, []string{"licor", "licores", "licoreria", "liquor", "tequila"}},
		{BusinessGasolina, []string{"gasolina", "gasolinera", "combustible", "diesel", "gas station", "gasoline", "fuel", "petrol"}},
		{BusinessMecanico, []string{"mecanico", "mecánico", "taller", "llantera", "vulcanizadora", "llanta", "mechanic", "tire"}},
		{BusinessCarniceria, []string{"carniceria", "carnicería", "carne", "butcher", "meat"}},
		{BusinessMercado, []string{"mercado", "tianguis", "market"}},
		{BusinessAbarrotes, []string{"abarrotes", "tienda", "tiendita", "minisuper", "oxxo", "grocery", "groceries", "store"}},
		{BusinessFarmacias, []string{"farmacia", "farmacias", "medicina", "medicinas", "pharmacy", "drugstore", "medicine"}},
		{BusinessGym, []string{"gym", "gimnasio", "crossfit", "workout"}},
		{BusinessHelados, []string{"helado", "helados", "nieve", "nieves", "paleta", "paletas", "paleteria", "ice cream"}},
		{BusinessOther, nil},
	}
}

// BusinessDetector matches free text against a category table. Categories
// are independent: every category with a keyword hit is reported.
type BusinessDetector struct {
	categories []Category
}

// NewBusinessDetector folds the keyword table once.
func NewBusinessDetector(categories []Category) *BusinessDetector {
	d := &BusinessDetector{}
	for _, c := range categories {
		fc := Category{Tag: c.Tag}
		for _, k := range c.Keywords {
			fc.Keywords = append(fc.Keywords, Fold(k))
		}
		d.categories = append(d.categories, fc)
	}
	return d
}

// Detect returns the categories found in text, in table order, followed by
// any explicit categories not already present. The result is nil when
// nothing matched and nothing was supplied.
func (d *BusinessDetector) Detect(text string, explicit ...string) []string {
	t := Fold(text)
	var out []string
	seen := make(map[string]bool)
	add := func(tag string) {
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}

	for _, c := range d.categories {
		for _, k := range c.Keywords {
			if containsWordPrefix(t, k) {
				add(c.Tag)
				break
			}
		}
	}
	for _, e := range explicit {
		add(normalizeTag(e))
	}
	return out
}

// Tags returns every known category tag in table order.
func (d *BusinessDetector) Tags() []string {
	tags := make([]string, len(d.categories))
	for i, c := range d.categories {
		tags[i] = c.Tag
	}
	return tags
}

// normalizeTag folds an explicit tag and maps the legacy "hostal" spelling.
func normalizeTag(tag string) string {
	t := Fold(tag)
	if t == "hostal" {
		return BusinessHostel
	}
	return t
}
