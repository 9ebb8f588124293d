package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/xhad/webqa/internal/types"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	Embedder   embeddings.Embedder
}

// VectorStore keeps chunks in a pgvector table. Every submission writes
// under its own collection id and deletes its rows when released.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "webqa_chunks"
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name: %q", config.TableName)
	}
	if config.VectorDim == 0 {
		config.VectorDim = 384
	}
	if config.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			collection_id UUID NOT NULL,
			content TEXT,
			chunk_index INTEGER,
			embedding vector(%d),
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Searches never leave one collection, so a plain btree is enough.
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_collection_idx
		ON %s (collection_id)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// NewIndex opens an empty collection.
func (vs *VectorStore) NewIndex(context.Context) (types.Index, error) {
	return &Collection{store: vs, id: uuid.New()}, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// Collection is the slice of the table owned by one submission.
type Collection struct {
	store *VectorStore
	id    uuid.UUID
	count int
}

var _ vectorstores.VectorStore = (*Collection)(nil)

func (c *Collection) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := applyOptions(c.store.config.Embedder, options)
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = sanitizeUTF8(doc.PageContent)
	}

	vectors, err := opts.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	tx, err := c.store.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, collection_id, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.store.config.TableName)

	ids := make([]string, len(docs))
	for i, doc := range docs {
		index := c.count + i
		ids[i] = fmt.Sprintf("%s_%d", c.id, index)

		metadata := doc.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}

		_, err = tx.Exec(ctx, stmt,
			ids[i],
			c.id.String(),
			texts[i],
			index,
			pgvector.NewVector(vectors[i]),
			metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert document: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	c.count += len(docs)

	return ids, nil
}

func (c *Collection) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(c.store.config.Embedder, options)
	if numDocuments <= 0 {
		return nil, nil
	}

	queryVector, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embeddings: %w", err)
	}

	sql := fmt.Sprintf(`
		SELECT content, metadata, 1 - (embedding <=> $2) AS score
		FROM %s
		WHERE collection_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		c.store.config.TableName)

	rows, err := c.store.pool.Query(ctx, sql, c.id.String(), pgvector.NewVector(queryVector), numDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var doc schema.Document
		var score float64
		if err := rows.Scan(&doc.PageContent, &doc.Metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.Score = float32(score)
		if opts.ScoreThreshold > 0 && doc.Score < opts.ScoreThreshold {
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return docs, nil
}

// Release deletes every row of the collection.
func (c *Collection) Release(ctx context.Context) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE collection_id = $1", c.store.config.TableName)
	if _, err := c.store.pool.Exec(ctx, sql, c.id.String()); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", c.id, err)
	}
	c.count = 0
	return nil
}

// Postgres rejects invalid UTF-8 and NUL bytes in text columns.
func sanitizeUTF8(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}
