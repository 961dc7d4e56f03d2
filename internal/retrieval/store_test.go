package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactux/cactux/internal/query"
	"github.com/cactux/cactux/internal/storage"
)

func openTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewSQLiteStore(st.DB())
}

func fixtureDocs() []Document {
	return []Document{
		{
			ID: "candelas-sport", Title: "Candelas 5.11", Content: "## Tlaloc\n- **Grado:** 5.11a",
			Metadata:  map[string]any{"source": []any{"candelas"}, "type": query.TypeRouteGroup, "grade_group": "5.11"},
			Embedding: []float32{1, 0, 0},
		},
		{
			ID: "comadres-boulder", Title: "Comadres V5",
			Metadata:  map[string]any{"source": "comadres", "type": query.TypeBoulderGroup, "grade_group": "V5"},
			Embedding: []float32{0.9, 0.1, 0},
		},
		{
			ID: "hotel-1", Title: "Hotel Plaza",
			Metadata:  map[string]any{"source": query.SourceAccommodation, "type": query.TypeBusinessInfo, "business_type": []any{"hotel", "restaurant"}},
			Embedding: []float32{0, 1, 0},
		},
		{
			ID: "camp-1", Title: "Campamento El Realejo",
			Metadata:  map[string]any{"source": query.SourceAccommodation, "type": query.TypeBusinessInfo, "business_type": "camping"},
			Embedding: []float32{0, 0.8, 0.2},
		},
	}
}

func TestSQLiteStore_MatchOrdersBySimilarity(t *testing.T) {
	s := openTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, fixtureDocs()))

	got, err := s.Match(ctx, []float32{1, 0, 0}, 2, query.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "candelas-sport", got[0].ID)
	assert.Equal(t, "comadres-boulder", got[1].ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.GreaterOrEqual(t, got[0].Similarity, got[1].Similarity)
	assert.Equal(t, "## Tlaloc\n- **Grado:** 5.11a", got[0].Content)
}

func TestSQLiteStore_MatchAppliesFilter(t *testing.T) {
	s := openTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, fixtureDocs()))

	tests := []struct {
		name   string
		filter query.Filter
		want   []string
	}{
		{"source in list", query.Filter{Source: "candelas"}, []string{"candelas-sport"}},
		{"type", query.Filter{Type: query.TypeBoulderGroup}, []string{"comadres-boulder"}},
		{"grade prefix", query.Filter{GradeGroup: []string{"5.11a"}}, []string{"candelas-sport"}},
		{"grade miss", query.Filter{GradeGroup: []string{"V1"}}, nil},
		{"business overlap", query.Filter{Source: query.SourceAccommodation, Type: query.TypeBusinessInfo, BusinessType: []string{"camping", "spa"}}, []string{"camp-1"}},
		{"accommodation all", query.Filter{Source: query.SourceAccommodation, Type: query.TypeBusinessInfo}, []string{"camp-1", "hotel-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Match(ctx, []float32{0, 0, 1}, 10, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	s := openTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, fixtureDocs()))

	doc := fixtureDocs()[0]
	doc.Title = "Candelas renovado"
	require.NoError(t, s.Upsert(ctx, []Document{doc}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.Match(ctx, []float32{1, 0, 0}, 1, query.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Candelas renovado", got[0].Title)
	assert.Equal(t, []float32{1, 0, 0}, got[0].Embedding)
}

func TestSQLiteStore_MatchEdgeCases(t *testing.T) {
	s := openTestSQLiteStore(t)
	ctx := context.Background()

	got, err := s.Match(ctx, []float32{1, 0, 0}, 10, query.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Upsert(ctx, fixtureDocs()))
	got, err = s.Match(ctx, []float32{0, 0, 0}, 10, query.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got, "zero query vector matches nothing")

	got, err = s.Match(ctx, []float32{1, 0, 0}, 0, query.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out, err := decodeFloat32s(encodeFloat32s(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeFloat32s([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestGradeInGroup(t *testing.T) {
	assert.True(t, gradeInGroup("5.11a", "5.11"))
	assert.True(t, gradeInGroup("5.11+", "5.11"))
	assert.True(t, gradeInGroup("v5", "V5"))
	assert.False(t, gradeInGroup("V10", "V1"))
	assert.False(t, gradeInGroup("5.1", "5.11"))
	assert.False(t, gradeInGroup("5.11", ""))
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[1,-0.5,0.25]", vectorLiteral([]float32{1, -0.5, 0.25}))
	assert.Equal(t, "[]", vectorLiteral(nil))
}
