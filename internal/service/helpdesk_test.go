package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"helpdesk/internal/domain"
	"helpdesk/internal/generator"
	"helpdesk/internal/prompt"
	"helpdesk/internal/retriever"
	"helpdesk/internal/sources"
	"helpdesk/internal/vectorstore/memory"
)

type stubEmbedder struct {
	vector []float64
	err    error
	calls  int
}

func (s *stubEmbedder) Name() string { return "stub" }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	s.calls++
	return s.vector, s.err
}

type stubStore struct {
	matches []domain.Match
	err     error
	calls   int
}

func (s *stubStore) Nearest(ctx context.Context, vector []float64, limit int) ([]domain.Match, error) {
	s.calls++
	return s.matches, s.err
}

type stubModel struct {
	answer     string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubModel) Name() string { return "stub-model" }

func (s *stubModel) Complete(ctx context.Context, p string, onToken domain.TokenFunc) (string, error) {
	s.calls++
	s.lastPrompt = p
	if s.err != nil {
		return "", s.err
	}
	for _, r := range s.answer {
		if onToken != nil {
			onToken(string(r))
		}
	}
	return s.answer, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	tokens  []string
	sources []string
}

func (r *recordingObserver) OnToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
}

func (r *recordingObserver) OnSources(block string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, block)
}

func newDesk(t *testing.T, emb domain.Embedder, st domain.VectorStore, model domain.LanguageModel, obs domain.Observer) *HelpDesk {
	t.Helper()
	pb, err := prompt.NewBuilder(prompt.DefaultTemplate)
	require.NoError(t, err)
	return NewHelpDesk(emb, retriever.New(st), pb, generator.New(model), sources.NewRanker(sources.DefaultMessages()),
		Settings{Observer: obs}, zap.NewNop())
}

func TestAnswer_EndToEnd(t *testing.T) {
	emb := &stubEmbedder{vector: []float64{0.1, 0.2}}
	st := &stubStore{matches: []domain.Match{
		{Text: "t1", Title: "Doc1", SourceID: "u1"},
		{Text: "t2", Title: "Doc1", SourceID: "u1"},
	}}
	model := &stubModel{answer: "42"}
	obs := &recordingObserver{}

	res, err := newDesk(t, emb, st, model, obs).Answer(context.Background(), "What is the meaning?", WithK(2))
	require.NoError(t, err)

	assert.Equal(t, "42", res.AnswerText)
	assert.Equal(t, "Voici la source qui pourrait t'être utile :  \n- [Doc1](u1)", res.CitationBlock)
	assert.Equal(t, 1, strings.Count(res.CitationBlock, "[Doc1](u1)"))
	assert.Contains(t, model.lastPrompt, "t1\n\nt2")
	assert.Contains(t, model.lastPrompt, "Question: What is the meaning?")
	assert.Equal(t, []string{"4", "2"}, obs.tokens)
	assert.Equal(t, []string{res.CitationBlock}, obs.sources)
}

func TestAnswer_NotVerboseSkipsSources(t *testing.T) {
	st := &stubStore{matches: []domain.Match{{Text: "t", Title: "A", SourceID: "a"}}}
	obs := &recordingObserver{}

	res, err := newDesk(t, &stubEmbedder{}, st, &stubModel{answer: "ok"}, obs).
		Answer(context.Background(), "q", WithVerbose(false))
	require.NoError(t, err)
	assert.NotEmpty(t, res.CitationBlock)
	assert.Empty(t, obs.sources)
	assert.NotEmpty(t, obs.tokens)
}

func TestAnswer_NoChunks(t *testing.T) {
	res, err := newDesk(t, &stubEmbedder{}, &stubStore{}, &stubModel{answer: "dunno"}, nil).
		Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "dunno", res.AnswerText)
	assert.Equal(t, sources.DefaultNoSource, res.CitationBlock)
}

func TestAnswer_InvalidInputHasNoSideEffects(t *testing.T) {
	cases := []struct {
		name     string
		question string
		k        int
	}{
		{"zero k", "q", 0},
		{"negative k", "q", -3},
		{"empty question", "", 2},
		{"blank question", "  \n", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			emb := &stubEmbedder{}
			st := &stubStore{}
			model := &stubModel{answer: "x"}

			res, err := newDesk(t, emb, st, model, nil).Answer(context.Background(), tc.question, WithK(tc.k))
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
			assert.Zero(t, emb.calls)
			assert.Zero(t, st.calls)
			assert.Zero(t, model.calls)
		})
	}
}

func TestAnswer_StageErrorsPropagateUnchanged(t *testing.T) {
	embedErr := errors.New("embedder down")
	storeErr := errors.New("store down")

	t.Run("embedder", func(t *testing.T) {
		st := &stubStore{}
		_, err := newDesk(t, &stubEmbedder{err: embedErr}, st, &stubModel{}, nil).Answer(context.Background(), "q")
		assert.Same(t, embedErr, err)
		assert.Zero(t, st.calls)
	})
	t.Run("store", func(t *testing.T) {
		model := &stubModel{}
		_, err := newDesk(t, &stubEmbedder{}, &stubStore{err: storeErr}, model, nil).Answer(context.Background(), "q")
		assert.Same(t, storeErr, err)
		assert.Zero(t, model.calls)
	})
	t.Run("metadata", func(t *testing.T) {
		st := &stubStore{matches: []domain.Match{{Text: "t", Title: "T"}}}
		model := &stubModel{}
		res, err := newDesk(t, &stubEmbedder{}, st, model, nil).Answer(context.Background(), "q")
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, domain.ErrMissingMetadata))
		assert.Zero(t, model.calls)
	})
	t.Run("generation", func(t *testing.T) {
		obs := &recordingObserver{}
		st := &stubStore{matches: []domain.Match{{Text: "t", Title: "T", SourceID: "s"}}}
		res, err := newDesk(t, &stubEmbedder{}, st, &stubModel{err: errors.New("timeout")}, obs).Answer(context.Background(), "q")
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, domain.ErrGeneration))
		assert.Empty(t, obs.sources)
	})
}

func TestAnswer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := &stubStore{matches: []domain.Match{{Text: "t", Title: "T", SourceID: "s"}}}

	res, err := newDesk(t, &stubEmbedder{}, st, &stubModel{answer: "x"}, nil).Answer(ctx, "q")
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, domain.ErrCancelled))
}

func TestAnswer_WithMemoryStore(t *testing.T) {
	st := memory.NewStorage()
	require.NoError(t, st.Add(
		memory.Record{Text: "reset your password from the portal", Title: "Password", SourceID: "kb/pw", Vector: []float64{1, 0, 0}},
		memory.Record{Text: "password rules", Title: "Password", SourceID: "kb/pw", Vector: []float64{0.9, 0.1, 0}},
		memory.Record{Text: "vpn setup", Title: "VPN", SourceID: "kb/vpn", Vector: []float64{0, 1, 0}},
		memory.Record{Text: "printer", Title: "Printer", SourceID: "kb/print", Vector: []float64{0, 0, 1}},
	))
	var out bytes.Buffer
	desk := newDesk(t, &stubEmbedder{vector: []float64{1, 0.2, 0}}, st, &stubModel{answer: "Use the portal."}, NewWriterObserver(&out))

	res, err := desk.Answer(context.Background(), "How do I reset my password?")
	require.NoError(t, err)
	assert.Equal(t, "Voici 2 sources qui pourraient t'être utiles :  \n- [Password](kb/pw)  \n- [VPN](kb/vpn)", res.CitationBlock)
	assert.Equal(t, "Use the portal.\n"+res.CitationBlock+"\n", out.String())
}

func TestAnswer_ConcurrentRequests(t *testing.T) {
	st := memory.NewStorage()
	require.NoError(t, st.Add(memory.Record{Text: "t", Title: "T", SourceID: "s", Vector: []float64{1}}))
	desk := newDesk(t, &constEmbedder{}, st, &echoModel{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := desk.Answer(context.Background(), "q")
			assert.NoError(t, err)
			assert.Equal(t, "echo", res.AnswerText)
		}()
	}
	wg.Wait()
}

type constEmbedder struct{}

func (constEmbedder) Name() string { return "const" }
func (constEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1}, nil
}

type echoModel struct{}

func (echoModel) Name() string { return "echo" }
func (echoModel) Complete(ctx context.Context, p string, onToken domain.TokenFunc) (string, error) {
	return "echo", nil
}
