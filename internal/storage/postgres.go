package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore keeps chats, messages and locations in Postgres, the layout
// used by hosted deployments.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
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
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// DB exposes the connection so the vector store can share it.
func (s *PostgresStore) DB() *sql.DB { return s.db }

type pgMigration struct {
	Version int
	SQL     string
}

var pgMigrations = []pgMigration{
	{1, `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT 'Chat nuevo',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS messages (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	parts      JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, seq);`},
	{2, `
CREATE TABLE IF NOT EXISTS place (
	name      TEXT PRIMARY KEY,
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS sector (
	name      TEXT PRIMARY KEY,
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL
);
INSERT INTO place (name, latitude, longitude) VALUES ('Guadalcazar', 22.6167, -100.4)
ON CONFLICT (name) DO NOTHING;`},
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	for _, m := range pgMigrations {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateChat(ctx context.Context, c Chat) error {
	title := c.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultChatTitle
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, user_id, title, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`, c.ID, c.UserID, title, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("creating chat %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetChatByID(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting chat %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresStore) AddMessages(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, chat_id, role, parts, created_at) VALUES ($1, $2, $3, $4::jsonb, $5)`,
			m.ID, m.ChatID, m.Role, string(partsOrEmpty(m.Parts)), createdAt,
		); err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, role, parts, created_at FROM messages
		WHERE chat_id = $1 ORDER BY seq ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var parts []byte
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &parts, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Parts = json.RawMessage(parts)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Coordinates(ctx context.Context, table, name string) (Location, error) {
	if !validLocationTable(table) {
		return Location{}, fmt.Errorf("unknown location table %q", table)
	}
	var loc Location
	err := s.db.QueryRowContext(ctx,
		`SELECT name, latitude, longitude FROM `+table+` WHERE name ILIKE $1 LIMIT 1`, escapeLike(name),
	).Scan(&loc.Name, &loc.Latitude, &loc.Longitude)
	if err == sql.ErrNoRows {
		return Location{}, ErrNotFound
	}
	if err != nil {
		return Location{}, fmt.Errorf("looking up %s %q: %w", table, name, err)
	}
	return loc, nil
}

func (s *PostgresStore) UpsertLocation(ctx context.Context, table string, loc Location) error {
	if !validLocationTable(table) {
		return fmt.Errorf("unknown location table %q", table)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (name, latitude, longitude) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude`,
		loc.Name, loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("upserting %s %q: %w", table, loc.Name, err)
	}
	return nil
}

// escapeLike makes name match literally under ILIKE.
func escapeLike(name string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(name)
}
