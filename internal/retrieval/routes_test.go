package retrieval

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sectorContent = `# Sector Tlaloc

Muro principal con placas verticales.

## La Bruja
- **ID:** r-101
- **Sector ID:** s-7
- **Grado:** 5.11a
- **Tipo:** sport
- **Calidad:** 3 estrellas
- **Bolts:** 9
Desplome corto con salida técnica.

## Sin Nombre
- **Grado:** 5.10+
- **Calidad:** n/a
- **Bolts:** 0
- **Campo raro:** ignorado
`

func TestParseRoutes(t *testing.T) {
	routes := ParseRoutes(sectorContent)
	require.Len(t, routes, 2)

	first := routes[0]
	assert.Equal(t, "La Bruja", first.Name)
	assert.Equal(t, "r-101", first.ID)
	assert.Equal(t, "s-7", first.SectorID)
	assert.Equal(t, "5.11a", first.Grade)
	assert.Equal(t, "sport", first.Type)
	assert.Equal(t, 3, first.Quality)
	require.NotNil(t, first.Bolts)
	assert.Equal(t, 9, *first.Bolts)
	assert.Equal(t, "Desplome corto con salida técnica.", first.Description)

	second := routes[1]
	assert.Equal(t, "Sin Nombre", second.Name)
	assert.Equal(t, "5.10+", second.Grade)
	assert.Zero(t, second.Quality)
	assert.Nil(t, second.Bolts)
	assert.Empty(t, second.ID)
}

func TestParseRoutes_NoHeaders(t *testing.T) {
	routes := ParseRoutes("texto libre\n- **Grado:** 5.9")
	assert.NotNil(t, routes)
	assert.Empty(t, routes)
}

func TestRouteDocuments_PrefersStructuredRoutes(t *testing.T) {
	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"routes":[{"id":"r1","name":"Estructurada","grade":"V4","quality":2,"bolts":0}]}`), &meta))

	docs := RouteDocuments([]Match{
		{Document: Document{Title: "A", Summary: "sa", Content: sectorContent, Metadata: meta}},
		{Document: Document{Title: "B", Summary: "sb", Content: sectorContent}},
		{Document: Document{Title: "C", Content: "nada"}},
	})
	require.Len(t, docs, 3)

	require.Len(t, docs[0].Routes, 1)
	assert.Equal(t, "Estructurada", docs[0].Routes[0].Name)
	assert.Equal(t, "A", docs[0].Title)

	assert.Len(t, docs[1].Routes, 2)
	assert.Equal(t, "sb", docs[1].Summary)

	b, err := json.Marshal(docs[2])
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"C","summary":"","routes":[]}`, string(b))
}

func TestLeadingInt(t *testing.T) {
	n, ok := leadingInt("12 bolts")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = leadingInt("doce")
	assert.False(t, ok)

	n, ok = leadingInt("-3")
	assert.True(t, ok)
	assert.Equal(t, -3, n)
}
