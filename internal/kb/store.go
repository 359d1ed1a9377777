// Package kb provides the knowledge-base storage the domain tools
// query: microbe feature records, domain experts, and ingested
// knowledge documents, plus an archive of completed agent runs.
package kb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // pure-Go SQLite driver for database/sql
)

// Store manages knowledge-base persistence.
type Store struct {
	db *sql.DB
}

// Open creates a store backed by the SQLite database at path, creating
// the schema if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS microbes (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			oxygen      TEXT NOT NULL,
			gram_stain  TEXT,
			habitat     TEXT,
			description TEXT,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_microbes_oxygen ON microbes(oxygen);

		CREATE TABLE IF NOT EXISTS experts (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			field       TEXT NOT NULL,
			affiliation TEXT,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_experts_field ON experts(field);

		CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			section    TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);

		CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			question        TEXT NOT NULL,
			response        TEXT NOT NULL,
			steps_json      TEXT NOT NULL,
			duration_ms     INTEGER NOT NULL,
			outcome         TEXT NOT NULL,
			created_at      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_conversation ON runs(conversation_id, created_at DESC);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Microbe is one microbial feature record.
type Microbe struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Oxygen      string    `json:"oxygen"` // aerobic, anaerobic, facultative
	GramStain   string    `json:"gram_stain,omitempty"`
	Habitat     string    `json:"habitat,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddMicrobe inserts or replaces a microbe record by name.
func (s *Store) AddMicrobe(ctx context.Context, m Microbe) (uuid.UUID, error) {
	if m.ID == uuid.Nil {
		m.ID, _ = uuid.NewV7()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO microbes (id, name, oxygen, gram_stain, habitat, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			oxygen = excluded.oxygen,
			gram_stain = excluded.gram_stain,
			habitat = excluded.habitat,
			description = excluded.description
	`, m.ID.String(), m.Name, m.Oxygen, m.GramStain, m.Habitat, m.Description, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add microbe: %w", err)
	}
	return m.ID, nil
}

// MicrobeFilter narrows a microbe query. Empty fields match anything.
type MicrobeFilter struct {
	Name    string // substring match
	Oxygen  string // exact match
	Habitat string // substring match
	Limit   int    // default 20
}

// QueryMicrobes returns records matching the filter, newest first. An
// empty result is returned as a nil slice with no error.
func (s *Store) QueryMicrobes(ctx context.Context, f MicrobeFilter) ([]Microbe, error) {
	query := `SELECT id, name, oxygen, gram_stain, habitat, description, created_at FROM microbes`
	var conds []string
	var args []any
	if f.Name != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+f.Name+"%")
	}
	if f.Oxygen != "" {
		conds = append(conds, "oxygen = ?")
		args = append(args, f.Oxygen)
	}
	if f.Habitat != "" {
		conds = append(conds, "habitat LIKE ?")
		args = append(args, "%"+f.Habitat+"%")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query microbes: %w", err)
	}
	defer rows.Close()

	var out []Microbe
	for rows.Next() {
		var m Microbe
		var id, created string
		if err := rows.Scan(&id, &m.Name, &m.Oxygen, &m.GramStain, &m.Habitat, &m.Description, &created); err != nil {
			return nil, fmt.Errorf("scan microbe: %w", err)
		}
		m.ID, _ = uuid.Parse(id)
		m.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Expert is a domain expert record.
type Expert struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Field       string    `json:"field"`
	Affiliation string    `json:"affiliation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddExpert inserts an expert record.
func (s *Store) AddExpert(ctx context.Context, e Expert) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID, _ = uuid.NewV7()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO experts (id, name, field, affiliation, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID.String(), e.Name, e.Field, e.Affiliation, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("add expert: %w", err)
	}
	return e.ID, nil
}

// ListExperts returns experts, optionally filtered by a field substring.
func (s *Store) ListExperts(ctx context.Context, field string, limit int) ([]Expert, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, name, field, affiliation, created_at FROM experts`
	var args []any
	if field != "" {
		query += " WHERE field LIKE ?"
		args = append(args, "%"+field+"%")
	}
	query += " ORDER BY name LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list experts: %w", err)
	}
	defer rows.Close()

	var out []Expert
	for rows.Next() {
		var e Expert
		var id, created string
		if err := rows.Scan(&id, &e.Name, &e.Field, &e.Affiliation, &created); err != nil {
			return nil, fmt.Errorf("scan expert: %w", err)
		}
		e.ID, _ = uuid.Parse(id)
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Document is one heading-scoped chunk of an ingested knowledge file.
type Document struct {
	ID      uuid.UUID `json:"id"`
	Source  string    `json:"source"`
	Section string    `json:"section"`
	Content string    `json:"content"`
}

// ReplaceDocuments atomically replaces all documents from one source.
// Re-ingesting a file is therefore idempotent.
func (s *Store) ReplaceDocuments(ctx context.Context, source string, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source); err != nil {
		return fmt.Errorf("delete old documents: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, d := range docs {
		id := d.ID
		if id == uuid.Nil {
			id, _ = uuid.NewV7()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, source, section, content, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, id.String(), source, d.Section, d.Content, now); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return tx.Commit()
}

// SearchDocuments returns chunks whose section or content matches the
// query substring.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, section, content FROM documents
		WHERE section LIKE ? OR content LIKE ?
		ORDER BY source, section LIMIT ?
	`, "%"+query+"%", "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var id string
		if err := rows.Scan(&id, &d.Source, &d.Section, &d.Content); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.ID, _ = uuid.Parse(id)
		out = append(out, d)
	}
	return out, rows.Err()
}
