package generator

import (
	"context"
	"errors"

	"helpdesk/internal/domain"
)

// Generator runs a LanguageModel to completion and classifies its failures.
// It never retries.
type Generator struct {
	model domain.LanguageModel
}

func New(model domain.LanguageModel) *Generator { return &Generator{model: model} }

// Model returns the name of the underlying language model.
func (g *Generator) Model() string { return g.model.Name() }

// Generate returns the complete answer text. onToken, when non-nil, sees each
// fragment as it streams. Cancellation of ctx yields a cancelled error and no
// text, even if the model had already produced some.
func (g *Generator) Generate(ctx context.Context, prompt string, onToken domain.TokenFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify(ctx, err)
	}
	var forward domain.TokenFunc
	if onToken != nil {
		forward = func(token string) {
			if ctx.Err() != nil {
				return
			}
			onToken(token)
		}
	}
	text, err := g.model.Complete(ctx, prompt, forward)
	if err != nil {
		return "", classify(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return "", classify(ctx, err)
	}
	return text, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return domain.Cancelled(err)
	}
	return domain.GenerationError(err)
}
