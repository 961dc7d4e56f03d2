package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cactux/cactux/internal/query"
)

// fakeProvider maps known texts to fixed vectors.
type fakeProvider struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int32
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

type failingStore struct{ VectorStore }

func (failingStore) Match(context.Context, []float32, int, query.Filter) ([]Match, error) {
	return nil, errors.New("rpc down")
}

func TestRetriever_Match(t *testing.T) {
	store := openTestSQLiteStore(t)
	require.NoError(t, store.Upsert(context.Background(), fixtureDocs()))

	p := &fakeProvider{vectors: map[string][]float32{"rutas en candelas": {1, 0, 0}}}
	r := NewRetriever(NewEmbedder(p), store, 0, nil)

	got, err := r.Match(context.Background(), "rutas en candelas", query.Filter{Source: "candelas"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "candelas-sport", got[0].ID)
	assert.Equal(t, DefaultMatchCount, r.matchCount)
}

func TestRetriever_EmbeddingError(t *testing.T) {
	r := NewRetriever(NewEmbedder(&fakeProvider{err: errors.New("quota")}), openTestSQLiteStore(t), 10, nil)

	_, err := r.Match(context.Background(), "x", query.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding query")
	assert.Contains(t, err.Error(), "quota")
}

func TestRetriever_SearchError(t *testing.T) {
	r := NewRetriever(NewEmbedder(&fakeProvider{}), failingStore{}, 10, nil)

	_, err := r.Match(context.Background(), "x", query.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity search: rpc down")
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	p := &fakeProvider{vectors: map[string][]float32{"a": {1}, "b": {2}, "c": {3}}}
	e := NewEmbedder(p)

	vecs, err := e.EmbedBatch(context.Background(), []string{"c", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3}, {1}, {2}}, vecs)
	assert.EqualValues(t, 3, p.calls.Load())

	vecs, err = e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedBatch_Error(t *testing.T) {
	e := NewEmbedder(&fakeProvider{err: errors.New("boom")})
	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "boom")
}
