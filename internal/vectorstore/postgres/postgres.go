// Package postgres searches a pgvector table with lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"helpdesk/internal/domain"
	"helpdesk/internal/vectorstore"
)

const DefaultTable = "chunks"

// Storage queries a table with text, title, source and an embedding column of
// pgvector type. Similarity is 1 - cosine distance.
type Storage struct {
	db    *sql.DB
	table string
	query string
	owned bool
}

// Open connects with the given DSN.
func Open(ctx context.Context, dsn, table string) (*Storage, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s, err := New(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, table string) (*Storage, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := vectorstore.ValidateIdentifier(table); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &Storage{
		db:    db,
		table: table,
		query: fmt.Sprintf(`SELECT text, title, source, 1 - (embedding <=> $1::vector) AS score FROM %s ORDER BY embedding <=> $1::vector LIMIT $2`, table),
	}, nil
}

func (s *Storage) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) Nearest(ctx context.Context, vector []float64, limit int) ([]domain.Match, error) {
	if limit <= 0 {
		return nil, errors.New("postgres: limit must be positive")
	}
	rows, err := s.db.QueryContext(ctx, s.query, vectorLiteral(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		var text, title, source sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&text, &title, &source, &score); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		out = append(out, domain.Match{Text: text.String, Title: title.String, SourceID: source.String, Score: score.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return out, nil
}

// vectorLiteral renders v in pgvector text form, e.g. [0.1,0.2].
func vectorLiteral(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
