// Package rediscache caches query embeddings in Redis in front of any
// domain.Embedder.
package rediscache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"helpdesk/internal/domain"
)

const DefaultPrefix = "helpdesk:emb:"

// Embedder decorates another Embedder with a Redis lookup.
type Embedder struct {
	next   domain.Embedder
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// New wraps next. A zero ttl keeps entries without expiry.
func New(next domain.Embedder, client *redis.Client, ttl time.Duration, prefix string, logger *zap.Logger) *Embedder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{next: next, client: client, ttl: ttl, prefix: prefix, logger: logger}
}

func (e *Embedder) Name() string { return e.next.Name() }

func (e *Embedder) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return e.prefix + e.next.Name() + ":" + hex.EncodeToString(sum[:])
}

// Embed serves the vector from Redis when present. Redis failures fall
// through to the wrapped embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := e.key(text)
	raw, err := e.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float64
		if jerr := json.Unmarshal(raw, &vec); jerr == nil && len(vec) > 0 {
			return vec, nil
		}
		e.logger.Warn("discarding corrupt cached embedding", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		e.logger.Warn("embedding cache lookup failed", zap.String("key", key), zap.Error(err))
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return vec, nil
	}
	if err := e.client.Set(ctx, key, data, e.ttl).Err(); err != nil {
		e.logger.Warn("embedding cache store failed", zap.String("key", key), zap.Error(err))
	}
	return vec, nil
}
