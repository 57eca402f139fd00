package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"helpdesk/internal/domain"
)

const (
	DefaultTextKey   = "page_content"
	DefaultTitleKey  = "metadata.title"
	DefaultSourceKey = "metadata.source"
)

// Storage is a minimal REST client to an existing Qdrant collection.
// It only searches; the collection is populated elsewhere.
type Storage struct {
	url        string
	apiKey     string
	collection string
	textKey    string
	titleKey   string
	sourceKey  string
	client     *http.Client
}

// Config holds connection details and the payload layout of the collection.
// Payload keys may be dotted paths into nested objects.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	TextKey    string
	TitleKey   string
	SourceKey  string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		textKey:    cfg.TextKey,
		titleKey:   cfg.TitleKey,
		sourceKey:  cfg.SourceKey,
		client:     &http.Client{Timeout: timeout},
	}
	if s.textKey == "" {
		s.textKey = DefaultTextKey
	}
	if s.titleKey == "" {
		s.titleKey = DefaultTitleKey
	}
	if s.sourceKey == "" {
		s.sourceKey = DefaultSourceKey
	}
	return s
}

// Nearest returns up to limit points ordered by Qdrant's score.
func (s *Storage) Nearest(ctx context.Context, vector []float64, limit int) ([]domain.Match, error) {
	if limit <= 0 {
		return nil, errors.New("qdrant: limit must be positive")
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, domain.Match{
			Text:     lookupString(r.Payload, s.textKey),
			Title:    lookupString(r.Payload, s.titleKey),
			SourceID: lookupString(r.Payload, s.sourceKey),
			Score:    r.Score,
		})
	}
	return matches, nil
}

// lookupString resolves a dotted path; anything missing or non-string is "".
func lookupString(payload map[string]any, path string) string {
	var cur any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}
	v, _ := cur.(string)
	return v
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant POST %s failed: %s: %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		dec := json.NewDecoder(resp.Body)
		return dec.Decode(out)
	}
	return nil
}
