package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/webqa/internal/testutil"
	"github.com/xhad/webqa/pkg/store"
)

func getTestConfig(t *testing.T) store.VectorStoreConfig {
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		ConnString: connString,
		TableName:  "test_webqa_chunks",
		VectorDim:  64,
		Embedder:   &testutil.HashEmbedder{Dim: 64},
	}
}

func TestNewWithConfig_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := store.NewWithConfig(ctx, store.VectorStoreConfig{TableName: "docs; DROP TABLE users"})
	assert.Error(t, err)

	_, err = store.NewWithConfig(ctx, store.VectorStoreConfig{TableName: "docs"})
	assert.Error(t, err)
}

func TestVectorStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewWithConfig(ctx, getTestConfig(t))
	require.NoError(t, err)
	defer s.Close()

	index, err := s.NewIndex(ctx)
	require.NoError(t, err)

	ids, err := index.AddDocuments(ctx, testDocs)
	require.NoError(t, err)
	assert.Len(t, ids, len(testDocs))

	results, err := index.SimilaritySearch(ctx, "football match", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, testDocs[1].PageContent, results[0].PageContent)

	// Another collection never sees these rows.
	other, err := s.NewIndex(ctx)
	require.NoError(t, err)
	results, err = other.SimilaritySearch(ctx, "football match", 4)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, index.Release(ctx))
	results, err = index.SimilaritySearch(ctx, "football match", 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}
