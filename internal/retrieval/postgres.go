package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/cactux/cactux/internal/query"
)

var _ VectorStore = (*PostgresStore)(nil)

// PostgresStore searches a pgvector-enabled Postgres through the
// match_advanced_data procedure.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects with the given DSN and applies the vector schema.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Upsert(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, title, summary, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::vector)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		meta, err := marshalMetadata(d.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Title, d.Summary, d.Content, meta, vectorLiteral(d.Embedding)); err != nil {
			return fmt.Errorf("upserting document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Match(ctx context.Context, vector []float32, matchCount int, filter query.Filter) ([]Match, error) {
	if matchCount <= 0 {
		return nil, nil
	}
	f, err := json.Marshal(filter.Map())
	if err != nil {
		return nil, fmt.Errorf("encoding filter: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, content, metadata, similarity
		FROM match_advanced_data($1::vector, $2, $3::jsonb)`,
		vectorLiteral(vector), matchCount, string(f))
	if err != nil {
		return nil, fmt.Errorf("calling match_advanced_data: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var meta []byte
		var sim float64
		if err := rows.Scan(&m.ID, &m.Title, &m.Summary, &m.Content, &meta, &sim); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if m.Metadata, err = unmarshalMetadata(string(meta)); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", m.ID, err)
		}
		m.Similarity = float32(sim)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// vectorLiteral renders v in pgvector's text form: [1,2,3].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

type pgMigration struct {
	Version int
	Name    string
	SQL     string
}

var pgMigrations = []pgMigration{
	{1, "vector_extension", `CREATE EXTENSION IF NOT EXISTS vector`},
	{2, "documents", `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding  vector(768),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`},
	{3, "match_advanced_data", `
CREATE OR REPLACE FUNCTION match_advanced_data(
	query_embedding vector(768),
	match_count int,
	filter jsonb DEFAULT '{}'::jsonb
) RETURNS TABLE (
	id text,
	title text,
	summary text,
	content text,
	metadata jsonb,
	similarity float
) LANGUAGE plpgsql AS $$
BEGIN
	RETURN QUERY
	SELECT d.id, d.title, d.summary, d.content, d.metadata,
		1 - (d.embedding <=> query_embedding) AS similarity
	FROM documents d
	WHERE (NOT filter ? 'source' OR d.metadata->>'source' = filter->>'source'
			OR d.metadata->'source' ? (filter->>'source'))
		AND (NOT filter ? 'type' OR d.metadata->>'type' = filter->>'type')
		AND (NOT filter ? 'grade_group' OR EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(filter->'grade_group') g
			WHERE d.metadata->>'grade_group' = g OR d.metadata->'grade_group' ? g))
		AND (NOT filter ? 'business_type' OR EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(filter->'business_type') b
			WHERE d.metadata->>'business_type' = b OR d.metadata->'business_type' ? b))
	ORDER BY d.embedding <=> query_embedding
	LIMIT match_count;
END;
$$`},
	{4, "grade_group_prefix", `
CREATE OR REPLACE FUNCTION grade_in_group(grade text, grp text) RETURNS boolean
LANGUAGE sql IMMUTABLE AS $fn$
	SELECT grp <> ''
		AND left(lower(grade), length(grp)) = lower(grp)
		AND substr(grade, length(grp) + 1, 1) !~ '[0-9]'
$fn$;

CREATE OR REPLACE FUNCTION match_advanced_data(
	query_embedding vector(768),
	match_count int,
	filter jsonb DEFAULT '{}'::jsonb
) RETURNS TABLE (
	id text,
	title text,
	summary text,
	content text,
	metadata jsonb,
	similarity float
) LANGUAGE plpgsql AS $$
BEGIN
	RETURN QUERY
	SELECT d.id, d.title, d.summary, d.content, d.metadata,
		1 - (d.embedding <=> query_embedding) AS similarity
	FROM documents d
	WHERE (NOT filter ? 'source' OR d.metadata->>'source' = filter->>'source'
			OR d.metadata->'source' ? (filter->>'source'))
		AND (NOT filter ? 'type' OR d.metadata->>'type' = filter->>'type')
		AND (NOT filter ? 'grade_group' OR EXISTS (
			SELECT 1
			FROM jsonb_array_elements_text(filter->'grade_group') g,
				jsonb_array_elements_text(CASE jsonb_typeof(d.metadata->'grade_group')
					WHEN 'array' THEN d.metadata->'grade_group'
					ELSE jsonb_build_array(d.metadata->'grade_group') END) r
			WHERE grade_in_group(g, r) OR grade_in_group(r, g)))
		AND (NOT filter ? 'business_type' OR EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(filter->'business_type') b
			WHERE d.metadata->>'business_type' = b OR d.metadata->'business_type' ? b))
	ORDER BY d.embedding <=> query_embedding
	LIMIT match_count;
END;
$$`},
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS vector_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("creating vector_migrations table: %w", err)
	}

	for _, m := range pgMigrations {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM vector_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO vector_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
	}
	return nil
}
