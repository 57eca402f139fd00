package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"helpdesk/internal/domain"
	"helpdesk/internal/generator"
	"helpdesk/internal/prompt"
	"helpdesk/internal/retriever"
	"helpdesk/internal/sources"
)

// DefaultTopN is how many chunks are retrieved per question.
const DefaultTopN = 4

// Settings tunes a HelpDesk.
type Settings struct {
	// TopN is the retrieval limit.
	TopN int
	// K is the default citation count.
	K int
	// Observer receives streamed tokens and, in verbose mode, the citation block.
	Observer domain.Observer
}

// HelpDesk answers questions from retrieved context and cites its sources.
type HelpDesk struct {
	embedder  domain.Embedder
	retriever *retriever.Retriever
	prompts   *prompt.Builder
	generator *generator.Generator
	ranker    *sources.Ranker
	settings  Settings
	logger    *zap.Logger
}

func NewHelpDesk(embedder domain.Embedder, ret *retriever.Retriever, prompts *prompt.Builder, gen *generator.Generator, ranker *sources.Ranker, settings Settings, logger *zap.Logger) *HelpDesk {
	if settings.TopN <= 0 {
		settings.TopN = DefaultTopN
	}
	if settings.K <= 0 {
		settings.K = sources.DefaultK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HelpDesk{
		embedder:  embedder,
		retriever: ret,
		prompts:   prompts,
		generator: gen,
		ranker:    ranker,
		settings:  settings,
		logger:    logger,
	}
}

type answerOptions struct {
	k        int
	verbose  bool
	observer domain.Observer
}

// AnswerOption adjusts a single Answer call.
type AnswerOption func(*answerOptions)

// WithK sets the maximum number of citations.
func WithK(k int) AnswerOption { return func(o *answerOptions) { o.k = k } }

// WithVerbose controls whether the citation block is also sent to the observer.
func WithVerbose(verbose bool) AnswerOption { return func(o *answerOptions) { o.verbose = verbose } }

// WithObserver replaces the configured observer for one call.
func WithObserver(obs domain.Observer) AnswerOption {
	return func(o *answerOptions) { o.observer = obs }
}

// Answer runs embed, retrieve, prompt, generate and rank in sequence. Any
// stage failure aborts the request and is returned as produced; no partial
// result is ever returned.
func (h *HelpDesk) Answer(ctx context.Context, question string, opts ...AnswerOption) (*domain.AnswerResult, error) {
	o := answerOptions{k: h.settings.K, verbose: true, observer: h.settings.Observer}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.InvalidArgument("question must not be empty")
	}
	if o.k <= 0 {
		return nil, domain.InvalidArgument(fmt.Sprintf("k must be positive, got %d", o.k))
	}

	log := h.logger.With(zap.String("request_id", uuid.NewString()))
	start := time.Now()

	vector, err := h.embedder.Embed(ctx, question)
	if err != nil {
		log.Warn("embedding failed", zap.String("embedder", h.embedder.Name()), zap.Error(err))
		return nil, err
	}
	log.Debug("question embedded", zap.Int("dimension", len(vector)), zap.Duration("elapsed", time.Since(start)))

	chunks, err := h.retriever.Retrieve(ctx, vector, h.settings.TopN)
	if err != nil {
		log.Warn("retrieval failed", zap.Error(err))
		return nil, err
	}
	log.Debug("chunks retrieved", zap.Int("count", len(chunks)), zap.Duration("elapsed", time.Since(start)))

	text, err := h.prompts.Build(chunks, question)
	if err != nil {
		log.Warn("prompt build failed", zap.Error(err))
		return nil, err
	}

	var onToken domain.TokenFunc
	if o.observer != nil {
		onToken = o.observer.OnToken
	}
	answer, err := h.generator.Generate(ctx, text, onToken)
	if err != nil {
		log.Warn("generation failed", zap.String("model", h.generator.Model()), zap.Error(err))
		return nil, err
	}
	log.Debug("answer generated", zap.Int("length", len(answer)), zap.Duration("elapsed", time.Since(start)))

	block, err := h.ranker.Summarize(chunks, o.k)
	if err != nil {
		return nil, err
	}
	if o.verbose && o.observer != nil {
		o.observer.OnSources(block)
	}

	log.Info("question answered",
		zap.Int("chunks", len(chunks)),
		zap.Int("k", o.k),
		zap.Duration("elapsed", time.Since(start)))
	return &domain.AnswerResult{AnswerText: answer, CitationBlock: block}, nil
}
