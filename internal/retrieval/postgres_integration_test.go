//go:build integration

package retrieval

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactux/cactux/internal/query"
)

// openIntegrationPostgres connects to the pgvector database named by
// CACTUX_TEST_POSTGRES_DSN and skips the test when it is unset.
func openIntegrationPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("CACTUX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CACTUX_TEST_POSTGRES_DSN not set, skipping integration test")
	}
	s, err := OpenPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func unitVector(i int) []float32 {
	v := make([]float32, 768)
	v[i] = 1
	return v
}

func TestPostgresStore_GradeGroupMatchesLikeLocalStores(t *testing.T) {
	s := openIntegrationPostgres(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "it-candelas-511", Metadata: map[string]any{"type": query.TypeRouteGroup, "grade_group": "5.11"}, Embedding: unitVector(0)},
		{ID: "it-comadres-v1", Metadata: map[string]any{"type": query.TypeBoulderGroup, "grade_group": []any{"V1"}}, Embedding: unitVector(1)},
	}
	require.NoError(t, s.Upsert(ctx, docs))
	t.Cleanup(func() {
		s.db.Exec(`DELETE FROM documents WHERE id IN ('it-candelas-511', 'it-comadres-v1')`)
	})

	tests := []struct {
		name   string
		grades []string
		want   []string
	}{
		{"letter grade inside group", []string{"5.11a"}, []string{"it-candelas-511"}},
		{"case folded", []string{"v1"}, []string{"it-comadres-v1"}},
		{"longer number is another group", []string{"V10"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Match(ctx, unitVector(0), 10, query.Filter{GradeGroup: tt.grades})
			require.NoError(t, err)
			var ids []string
			for _, m := range got {
				if m.ID == "it-candelas-511" || m.ID == "it-comadres-v1" {
					ids = append(ids, m.ID)
				}
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
