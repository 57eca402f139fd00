package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"helpdesk/internal/prompt"
	"helpdesk/internal/sources"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// OllamaConfig holds configuration for a local Ollama server.
type OllamaConfig struct {
	BaseURL       string   `yaml:"base_url" validate:"required,url"`
	Model         string   `yaml:"model" validate:"required"`
	EmbedModel    string   `yaml:"embed_model,omitempty"`
	Temperature   *float64 `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Stream        bool     `yaml:"stream"`
	TimeoutSecs   int      `yaml:"timeout_secs" validate:"gte=0"`
	MinIntervalMS int      `yaml:"min_interval_ms" validate:"gte=0"`
	MaxRetries    int      `yaml:"max_retries" validate:"gte=0"`
}

// OpenAIConfig holds configuration for an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL     string   `yaml:"base_url" validate:"required,url"`
	APIKeyEnv   string   `yaml:"api_key_env" validate:"required"`
	Model       string   `yaml:"model" validate:"required"`
	EmbedModel  string   `yaml:"embed_model" validate:"required"`
	Temperature *float64 `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Stream      bool     `yaml:"stream"`
	TimeoutSecs int      `yaml:"timeout_secs" validate:"gte=0"`
}

// ProviderConfig selects and configures a model provider. It is used for
// both the embedder and the language model.
type ProviderConfig struct {
	Type   string        `yaml:"type" validate:"oneof=ollama openai"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty" validate:"required_if=Type ollama,omitempty"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty" validate:"required_if=Type openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type" validate:"oneof=qdrant sqlite postgres memory"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty" validate:"required_if=Type qdrant,omitempty"`
	SQLite   *SQLiteConfig   `yaml:"sqlite,omitempty" validate:"required_if=Type sqlite,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty" validate:"required_if=Type postgres,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" validate:"required,url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Collection  string `yaml:"collection" validate:"required"`
	TextKey     string `yaml:"text_key"`
	TitleKey    string `yaml:"title_key"`
	SourceKey   string `yaml:"source_key"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

type SQLiteConfig struct {
	Path  string `yaml:"path" validate:"required"`
	Table string `yaml:"table"`
}

type PostgresConfig struct {
	DSNEnv string `yaml:"dsn_env" validate:"required"`
	Table  string `yaml:"table"`
}

// CacheConfig enables the Redis query-embedding cache.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr" validate:"required_if=Enabled true"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	DB          int    `yaml:"db" validate:"gte=0"`
	Prefix      string `yaml:"prefix"`
	TTLSecs     int    `yaml:"ttl_secs" validate:"gte=0"`
}

type RetrievalConfig struct {
	TopN int `yaml:"top_n" validate:"gte=1"`
	K    int `yaml:"k" validate:"gte=1"`
}

type PromptConfig struct {
	Template string `yaml:"template" validate:"required"`
}

// SourcesConfig holds the citation block templates. Singular and Plural may
// use {sources}; Plural may also use {count}.
type SourcesConfig struct {
	NoSource string `yaml:"no_source" validate:"required"`
	Singular string `yaml:"singular" validate:"required"`
	Plural   string `yaml:"plural" validate:"required"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr" validate:"required"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=1"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Embedder    ProviderConfig    `yaml:"embedder"`
	LLM         ProviderConfig    `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Cache       CacheConfig       `yaml:"cache"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Sources     SourcesConfig     `yaml:"sources"`
	Server      ServerConfig      `yaml:"server"`
}

// ValidationError reports every invalid field of a config.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "invalid config: " + strings.Join(parts, "; ")
}

var validate = validator.New()

// Validate checks cfg after defaults have been applied.
func Validate(cfg *AppConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
		switch fe.Tag() {
		case "required", "required_if":
			fields[name] = fmt.Sprintf("%s is required", name)
		case "oneof":
			fields[name] = fmt.Sprintf("%s must be one of: %s", name, fe.Param())
		case "gte":
			fields[name] = fmt.Sprintf("%s must be greater than or equal to %s", name, fe.Param())
		case "lte":
			fields[name] = fmt.Sprintf("%s must be less than or equal to %s", name, fe.Param())
		case "url":
			fields[name] = fmt.Sprintf("%s must be a valid URL", name)
		default:
			fields[name] = fmt.Sprintf("%s failed on '%s'", name, fe.Tag())
		}
	}
	return &ValidationError{Fields: fields}
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/helpdesk/config.yaml.
// If neither exists, it writes defaults to ~/.config/helpdesk/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "helpdesk", "config.yaml"), nil
}

// Default returns the built-in configuration: a local Ollama running
// mistral and a Qdrant collection named helpdesk.
func Default() *AppConfig {
	cfg := &AppConfig{
		Embedder:    ProviderConfig{Type: "ollama"},
		LLM:         ProviderConfig{Type: "ollama"},
		VectorStore: VectorStoreConfig{Type: "qdrant"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	applyProviderDefaults(&cfg.Embedder)
	applyProviderDefaults(&cfg.LLM)

	vs := &cfg.VectorStore
	if vs.Type == "" {
		vs.Type = "qdrant"
	}
	switch vs.Type {
	case "qdrant":
		if vs.Qdrant == nil {
			vs.Qdrant = &QdrantConfig{}
		}
		if vs.Qdrant.URL == "" {
			vs.Qdrant.URL = "http://localhost:6333"
		}
		if vs.Qdrant.Collection == "" {
			vs.Qdrant.Collection = "helpdesk"
		}
		if vs.Qdrant.TimeoutSecs == 0 {
			vs.Qdrant.TimeoutSecs = 15
		}
	case "sqlite":
		if vs.SQLite != nil && vs.SQLite.Table == "" {
			vs.SQLite.Table = "chunks"
		}
	case "postgres":
		if vs.Postgres != nil && vs.Postgres.Table == "" {
			vs.Postgres.Table = "chunks"
		}
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.Prefix == "" {
			cfg.Cache.Prefix = "helpdesk:emb:"
		}
		if cfg.Cache.TTLSecs == 0 {
			cfg.Cache.TTLSecs = 24 * 3600
		}
	}

	if cfg.Retrieval.TopN == 0 {
		cfg.Retrieval.TopN = 4
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = sources.DefaultK
	}
	if cfg.Prompt.Template == "" {
		cfg.Prompt.Template = prompt.DefaultTemplate
	}
	msgs := sources.DefaultMessages()
	if cfg.Sources.NoSource == "" {
		cfg.Sources.NoSource = msgs.NoSource
	}
	if cfg.Sources.Singular == "" {
		cfg.Sources.Singular = msgs.Singular
	}
	if cfg.Sources.Plural == "" {
		cfg.Sources.Plural = msgs.Plural
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = 120
	}
}

func applyProviderDefaults(p *ProviderConfig) {
	if p.Type == "" {
		p.Type = "ollama"
	}
	switch p.Type {
	case "ollama":
		if p.Ollama == nil {
			p.Ollama = &OllamaConfig{}
		}
		if p.Ollama.BaseURL == "" {
			p.Ollama.BaseURL = "http://localhost:11434"
		}
		if p.Ollama.Model == "" {
			p.Ollama.Model = "mistral"
		}
		if p.Ollama.TimeoutSecs == 0 {
			p.Ollama.TimeoutSecs = 120
		}
		if p.Ollama.MaxRetries == 0 {
			p.Ollama.MaxRetries = 3
		}
	case "openai":
		if p.OpenAI == nil {
			p.OpenAI = &OpenAIConfig{}
		}
		if p.OpenAI.BaseURL == "" {
			p.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if p.OpenAI.APIKeyEnv == "" {
			p.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if p.OpenAI.Model == "" {
			p.OpenAI.Model = "gpt-4o-mini"
		}
		if p.OpenAI.EmbedModel == "" {
			p.OpenAI.EmbedModel = "text-embedding-3-small"
		}
		if p.OpenAI.TimeoutSecs == 0 {
			p.OpenAI.TimeoutSecs = 60
		}
	}
}
