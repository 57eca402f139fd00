package rediscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls++
	return c.vec, c.err
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestEmbed_CachesVector(t *testing.T) {
	mr, client := setupRedis(t)
	next := &countingEmbedder{vec: []float64{0.5, 1.5}}
	c := New(next, client, time.Minute, "", zap.NewNop())

	v1, err := c.Embed(context.Background(), "reset password")
	require.NoError(t, err)
	v2, err := c.Embed(context.Background(), "reset password")
	require.NoError(t, err)

	assert.Equal(t, []float64{0.5, 1.5}, v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, next.calls)

	key := c.key("reset password")
	assert.True(t, mr.Exists(key))
	assert.Contains(t, key, DefaultPrefix+"counting:")
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestEmbed_DistinctTextsDistinctKeys(t *testing.T) {
	_, client := setupRedis(t)
	next := &countingEmbedder{vec: []float64{1}}
	c := New(next, client, 0, "p:", nil)

	_, _ = c.Embed(context.Background(), "a")
	_, _ = c.Embed(context.Background(), "b")
	assert.Equal(t, 2, next.calls)
	assert.NotEqual(t, c.key("a"), c.key("b"))
}

func TestEmbed_NextErrorUnchangedAndNotCached(t *testing.T) {
	mr, client := setupRedis(t)
	boom := errors.New("embedder down")
	c := New(&countingEmbedder{err: boom}, client, 0, "", nil)

	_, err := c.Embed(context.Background(), "q")
	assert.Same(t, boom, err)
	assert.Empty(t, mr.Keys())
}

func TestEmbed_RedisDownFallsThrough(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	next := &countingEmbedder{vec: []float64{2}}
	c := New(next, client, 0, "", nil)

	vec, err := c.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, vec)
	assert.Equal(t, 1, next.calls)
}

func TestEmbed_CorruptEntryRecomputed(t *testing.T) {
	mr, client := setupRedis(t)
	next := &countingEmbedder{vec: []float64{3}}
	c := New(next, client, 0, "", nil)
	require.NoError(t, mr.Set(c.key("q"), "not json"))

	vec, err := c.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, vec)
	assert.Equal(t, 1, next.calls)
}

func TestName(t *testing.T) {
	_, client := setupRedis(t)
	assert.Equal(t, "counting", New(&countingEmbedder{}, client, 0, "", nil).Name())
}
