package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"helpdesk/internal/config"
	"helpdesk/internal/domain"
	"helpdesk/internal/embedding/rediscache"
	"helpdesk/internal/generator"
	"helpdesk/internal/prompt"
	"helpdesk/internal/provider/ollama"
	"helpdesk/internal/provider/openai"
	"helpdesk/internal/retriever"
	"helpdesk/internal/service"
	"helpdesk/internal/sources"
	"helpdesk/internal/vectorstore/memory"
	"helpdesk/internal/vectorstore/postgres"
	"helpdesk/internal/vectorstore/qdrant"
	"helpdesk/internal/vectorstore/sqlite"
)

// Dependencies holds everything built from the configuration.
type Dependencies struct {
	Config *config.AppConfig
	Logger *zap.Logger

	Embedder domain.Embedder
	Model    domain.LanguageModel
	Store    domain.VectorStore
	HelpDesk *service.HelpDesk

	closers []func() error
}

// NewDependencies selects and wires the configured implementations.
// observer may be nil.
func NewDependencies(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, observer domain.Observer) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dependencies{Config: cfg, Logger: logger}

	var err error
	if d.Embedder, err = newEmbedder(cfg.Embedder); err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if d.Model, err = newLanguageModel(cfg.LLM); err != nil {
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}
	if err := d.initStore(ctx, cfg.VectorStore); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if cfg.Cache.Enabled {
		d.initCache(ctx, cfg.Cache)
	}

	builder, err := prompt.NewBuilder(cfg.Prompt.Template)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	ranker := sources.NewRanker(sources.Messages{
		NoSource: cfg.Sources.NoSource,
		Singular: cfg.Sources.Singular,
		Plural:   cfg.Sources.Plural,
	})
	d.HelpDesk = service.NewHelpDesk(
		d.Embedder,
		retriever.New(d.Store),
		builder,
		generator.New(d.Model),
		ranker,
		service.Settings{TopN: cfg.Retrieval.TopN, K: cfg.Retrieval.K, Observer: observer},
		logger,
	)

	logger.Info("help desk initialized",
		zap.String("embedder", d.Embedder.Name()),
		zap.String("model", d.Model.Name()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.Bool("cache", cfg.Cache.Enabled))
	return d, nil
}

func newEmbedder(pc config.ProviderConfig) (domain.Embedder, error) {
	switch pc.Type {
	case "ollama", "":
		if pc.Ollama == nil {
			return nil, fmt.Errorf("ollama config missing")
		}
		return ollama.NewClient(ollamaConfig(pc.Ollama)), nil
	case "openai":
		if pc.OpenAI == nil {
			return nil, fmt.Errorf("openai config missing")
		}
		return openai.NewClient(openaiConfig(pc.OpenAI))
	default:
		return nil, fmt.Errorf("unknown embedder: %s", pc.Type)
	}
}

func newLanguageModel(pc config.ProviderConfig) (domain.LanguageModel, error) {
	switch pc.Type {
	case "ollama", "":
		if pc.Ollama == nil {
			return nil, fmt.Errorf("ollama config missing")
		}
		return ollama.NewClient(ollamaConfig(pc.Ollama)), nil
	case "openai":
		if pc.OpenAI == nil {
			return nil, fmt.Errorf("openai config missing")
		}
		return openai.NewClient(openaiConfig(pc.OpenAI))
	default:
		return nil, fmt.Errorf("unknown language model: %s", pc.Type)
	}
}

func ollamaConfig(c *config.OllamaConfig) ollama.Config {
	return ollama.Config{
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		EmbedModel:  c.EmbedModel,
		Temperature: c.Temperature,
		Stream:      c.Stream,
		Timeout:     time.Duration(c.TimeoutSecs) * time.Second,
		MinInterval: time.Duration(c.MinIntervalMS) * time.Millisecond,
		MaxRetries:  c.MaxRetries,
	}
}

func openaiConfig(c *config.OpenAIConfig) openai.Config {
	return openai.Config{
		BaseURL:     c.BaseURL,
		APIKeyEnv:   c.APIKeyEnv,
		Model:       c.Model,
		EmbedModel:  c.EmbedModel,
		Temperature: c.Temperature,
		Stream:      c.Stream,
		Timeout:     time.Duration(c.TimeoutSecs) * time.Second,
	}
}

func (d *Dependencies) initStore(ctx context.Context, vc config.VectorStoreConfig) error {
	switch vc.Type {
	case "memory":
		d.Store = memory.NewStorage()
	case "qdrant", "":
		if vc.Qdrant == nil {
			return fmt.Errorf("qdrant config missing")
		}
		var apiKey string
		if vc.Qdrant.APIKeyEnv != "" {
			apiKey = os.Getenv(vc.Qdrant.APIKeyEnv)
		}
		d.Store = qdrant.NewStorage(qdrant.Config{
			URL:        vc.Qdrant.URL,
			APIKey:     apiKey,
			Collection: vc.Qdrant.Collection,
			TextKey:    vc.Qdrant.TextKey,
			TitleKey:   vc.Qdrant.TitleKey,
			SourceKey:  vc.Qdrant.SourceKey,
			Timeout:    time.Duration(vc.Qdrant.TimeoutSecs) * time.Second,
		})
	case "sqlite":
		if vc.SQLite == nil {
			return fmt.Errorf("sqlite config missing")
		}
		st, err := sqlite.Open(vc.SQLite.Path, vc.SQLite.Table)
		if err != nil {
			return err
		}
		d.Store = st
		d.closers = append(d.closers, st.Close)
	case "postgres":
		if vc.Postgres == nil {
			return fmt.Errorf("postgres config missing")
		}
		dsn := os.Getenv(vc.Postgres.DSNEnv)
		if dsn == "" {
			return fmt.Errorf("missing postgres dsn in env %s", vc.Postgres.DSNEnv)
		}
		st, err := postgres.Open(ctx, dsn, vc.Postgres.Table)
		if err != nil {
			return err
		}
		d.Store = st
		d.closers = append(d.closers, st.Close)
	default:
		return fmt.Errorf("unknown vector store: %s", vc.Type)
	}
	return nil
}

func (d *Dependencies) initCache(ctx context.Context, cc config.CacheConfig) {
	var password string
	if cc.PasswordEnv != "" {
		password = os.Getenv(cc.PasswordEnv)
	}
	client := redis.NewClient(&redis.Options{Addr: cc.Addr, Password: password, DB: cc.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		d.Logger.Warn("redis unreachable, embeddings will not be cached until it recovers",
			zap.String("addr", cc.Addr), zap.Error(err))
	}
	d.closers = append(d.closers, client.Close)
	d.Embedder = rediscache.New(d.Embedder, client, time.Duration(cc.TTLSecs)*time.Second, cc.Prefix, d.Logger)
}

// Close releases store connections and the redis client.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
