package memory

import (
	"context"
	"errors"
	"sync"

	"helpdesk/internal/domain"
	"helpdesk/internal/vectorstore"
)

// Record is a stored chunk with its embedding.
type Record struct {
	Text     string
	Title    string
	SourceID string
	Vector   []float64
}

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []Record
}

func NewStorage() *Storage { return &Storage{} }

// Add appends records. All vectors must share the dimension of the first one.
func (s *Storage) Add(records ...Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if len(r.Vector) == 0 {
			return errors.New("memory: empty vector")
		}
		if s.dimension == 0 {
			s.dimension = len(r.Vector)
		}
		if len(r.Vector) != s.dimension {
			return errors.New("memory: vector dimension mismatch")
		}
	}
	s.records = append(s.records, records...)
	return nil
}

// Len reports the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.dimension = 0
}

// Nearest returns up to limit records by descending cosine similarity. Equal
// scores keep insertion order.
func (s *Storage) Nearest(ctx context.Context, vector []float64, limit int) ([]domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.New("memory: limit must be positive")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) > 0 && len(vector) != s.dimension {
		return nil, errors.New("memory: query dimension mismatch")
	}
	out := make([]domain.Match, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, domain.Match{Text: r.Text, Title: r.Title, SourceID: r.SourceID, Score: vectorstore.Cosine(vector, r.Vector)})
	}
	return vectorstore.TopN(out, limit), nil
}

