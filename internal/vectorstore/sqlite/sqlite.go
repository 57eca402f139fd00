// Package sqlite reads chunks and their embeddings from an existing SQLite
// table and ranks them by cosine similarity.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"helpdesk/internal/domain"
	"helpdesk/internal/vectorstore"
)

const DefaultTable = "chunks"

// Storage expects a table with text, title, source and embedding columns,
// embedding holding a JSON array of floats.
type Storage struct {
	db    *sql.DB
	table string
	owned bool
}

// Open opens the database file at path.
func Open(path, table string) (*Storage, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s, err := New(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an already opened database.
func New(db *sql.DB, table string) (*Storage, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := vectorstore.ValidateIdentifier(table); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &Storage{db: db, table: table}, nil
}

// Close closes the database when it was opened by Open.
func (s *Storage) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Nearest scans the table and returns up to limit rows by descending cosine
// similarity. Rows whose embedding has another dimension are skipped.
func (s *Storage) Nearest(ctx context.Context, vector []float64, limit int) ([]domain.Match, error) {
	if limit <= 0 {
		return nil, errors.New("sqlite: limit must be positive")
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT COALESCE(text,''), COALESCE(title,''), COALESCE(source,''), embedding FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		var m domain.Match
		var raw string
		if err := rows.Scan(&m.Text, &m.Title, &m.SourceID, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		var emb []float64
		if err := json.Unmarshal([]byte(raw), &emb); err != nil || len(emb) != len(vector) {
			continue
		}
		m.Score = vectorstore.Cosine(vector, emb)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return vectorstore.TopN(out, limit), nil
}
