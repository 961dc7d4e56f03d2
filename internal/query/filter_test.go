package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClimbing_ExplicitZoneWins(t *testing.T) {
	b := NewDefaultBuilder()

	f := b.Climbing(ClimbingParams{Query: "rutas en candelas", Zone: "salitre"})
	assert.Equal(t, ZoneSalitre, f.Source)
}

func TestClimbing_ZoneFromQuery(t *testing.T) {
	b := NewDefaultBuilder()

	f := b.Climbing(ClimbingParams{Query: "rutas en LAS CANDELAS porfa"})
	assert.Equal(t, ZoneCandelas, f.Source)
	assert.Equal(t, TypeRouteGroup, f.Type)
}

func TestClimbing_UnresolvedExplicitZone(t *testing.T) {
	b := NewDefaultBuilder()

	f := b.Climbing(ClimbingParams{Query: "rutas en candelas", Zone: "guadalcazar"})
	assert.Empty(t, f.Source)
}

func TestClimbing_TypePrecedence(t *testing.T) {
	b := NewDefaultBuilder()

	f := b.Climbing(ClimbingParams{Query: "boulders", Type: TypeSectorInfo})
	assert.Equal(t, TypeSectorInfo, f.Type)

	// Invalid explicit types fall back to detection.
	f = b.Climbing(ClimbingParams{Query: "boulders", Type: "bogus"})
	assert.Equal(t, TypeBoulderGroup, f.Type)

	f = b.Climbing(ClimbingParams{Query: "boulders y rutas"})
	assert.Empty(t, f.Type)
}

func TestClimbing_GradePrecedence(t *testing.T) {
	b := NewDefaultBuilder()

	f := b.Climbing(ClimbingParams{Query: "V5 en zelda", GradeGroup: []string{"V8"}})
	assert.Equal(t, []string{"V8"}, f.GradeGroup)

	f = b.Climbing(ClimbingParams{Query: "V5 en zelda", GradeGroup: []string{" "}})
	assert.Equal(t, []string{"V5"}, f.GradeGroup)
}

func TestClimbing_EmptyFilter(t *testing.T) {
	b := NewDefaultBuilder()

	f := b.Climbing(ClimbingParams{Query: "que onda"})
	assert.True(t, f.IsEmpty())
	assert.Empty(t, f.Map())
}

func TestAccommodation_MergesBusinessTypes(t *testing.T) {
	b := NewDefaultBuilder()

	f, q := b.Accommodation(AccommodationParams{Query: "quiero acampar", BusinessType: []string{"hotel"}})
	assert.Equal(t, "quiero acampar", q)
	assert.Equal(t, SourceAccommodation, f.Source)
	assert.Equal(t, TypeBusinessInfo, f.Type)
	assert.ElementsMatch(t, []string{BusinessHotel, BusinessCamping}, f.BusinessType)
}

func TestAccommodation_DefaultQuery(t *testing.T) {
	b := NewDefaultBuilder()

	f, q := b.Accommodation(AccommodationParams{})
	assert.Equal(t, DefaultAccommodationQuery, q)
	assert.Nil(t, f.BusinessType)
	assert.Equal(t, map[string]any{"source": "accommodation", "type": "business_info"}, f.Map())
}

func TestFilterMap(t *testing.T) {
	f := Filter{Source: "zelda", Type: TypeBoulderGroup, GradeGroup: []string{"V5"}}
	m := f.Map()
	require.Len(t, m, 3)
	assert.Equal(t, "zelda", m["source"])
	assert.Equal(t, []string{"V5"}, m["grade_group"])
	assert.NotContains(t, m, "business_type")
}
