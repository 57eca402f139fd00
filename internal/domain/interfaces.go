package domain

import "context"

// Match is a nearest-neighbour hit returned by a VectorStore, before ranking.
type Match struct {
	Text     string
	Title    string
	SourceID string
	Score    float64
}

// Chunk is a retrieved document chunk. Rank is the 0-based retrieval position;
// lower rank means higher similarity.
type Chunk struct {
	Text     string
	Title    string
	SourceID string
	Rank     int
}

// AnswerResult is the outcome of one question.
type AnswerResult struct {
	AnswerText    string
	CitationBlock string
}

// TokenFunc receives generated text fragments as they arrive.
type TokenFunc func(token string)

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorStore returns the closest stored chunks to a vector, most similar first.
type VectorStore interface {
	Nearest(ctx context.Context, vector []float64, limit int) ([]Match, error)
}

// LanguageModel turns a prompt into text. onToken may be nil; when set it is
// called for each fragment before Complete returns the full text.
type LanguageModel interface {
	Name() string
	Complete(ctx context.Context, prompt string, onToken TokenFunc) (string, error)
}

// Observer is a presentation side channel for answer progress.
type Observer interface {
	OnToken(token string)
	OnSources(block string)
}
