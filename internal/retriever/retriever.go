package retriever

import (
	"context"
	"fmt"

	"helpdesk/internal/domain"
)

// Retriever adapts a VectorStore into ranked chunks with mandatory metadata.
type Retriever struct {
	store domain.VectorStore
}

func New(store domain.VectorStore) *Retriever { return &Retriever{store: store} }

// Retrieve returns at most limit chunks, most similar first, with Rank set to
// the retrieval position. A match without title or source fails the call.
func (r *Retriever) Retrieve(ctx context.Context, vector []float64, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		return nil, domain.InvalidArgument(fmt.Sprintf("retrieval limit must be positive, got %d", limit))
	}
	matches, err := r.store.Nearest(ctx, vector, limit)
	if err != nil {
		return nil, err
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	chunks := make([]domain.Chunk, 0, len(matches))
	for i, m := range matches {
		if m.Title == "" {
			return nil, domain.MissingMetadata(fmt.Sprintf("match %d has no title", i))
		}
		if m.SourceID == "" {
			return nil, domain.MissingMetadata(fmt.Sprintf("match %d has no source", i))
		}
		chunks = append(chunks, domain.Chunk{Text: m.Text, Title: m.Title, SourceID: m.SourceID, Rank: i})
	}
	return chunks, nil
}
