package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"helpdesk/internal/domain"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = "gpt-4o-mini"
	DefaultEmbedModel = "text-embedding-3-small"
)

// Client is an OpenAI-compatible client implementing domain.Embedder and
// domain.LanguageModel.
type Client struct {
	api         openai.Client
	model       string
	embedModel  string
	temperature *float64
	stream      bool
}

// Config configures the OpenAI-compatible client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	EmbedModel  string
	Temperature *float64
	Stream      bool
	Timeout     time.Duration
}

// NewClient creates a client; the API key is read from the environment
// variable named by APIKeyEnv.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/"),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{
		api:         openai.NewClient(opts...),
		model:       cfg.Model,
		embedModel:  cfg.EmbedModel,
		temperature: cfg.Temperature,
		stream:      cfg.Stream,
	}, nil
}

// Name returns the identifier of this implementation.
func (c *Client) Name() string { return "openai/" + c.model }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai: no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) params(prompt string) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if c.temperature != nil {
		p.Temperature = openai.Float(*c.temperature)
	}
	return p
}

// Complete sends prompt as a single user message. In streaming mode each
// content delta is passed to onToken; otherwise onToken sees the whole answer.
func (c *Client) Complete(ctx context.Context, prompt string, onToken domain.TokenFunc) (string, error) {
	if !c.stream {
		resp, err := c.api.Chat.Completions.New(ctx, c.params(prompt))
		if err != nil {
			return "", fmt.Errorf("openai: chat: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("openai: no choices returned")
		}
		text := resp.Choices[0].Message.Content
		if onToken != nil && text != "" {
			onToken(text)
		}
		return text, nil
	}

	stream := c.api.Chat.Completions.NewStreaming(ctx, c.params(prompt))
	defer stream.Close()
	var out strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onToken != nil {
			onToken(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai: chat stream: %w", err)
	}
	return out.String(), nil
}
