package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, f.err)
}

func (f *fakeRedis) Set(_ context.Context, key string, _ any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.keys[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestGuard_MarkThenSeen(t *testing.T) {
	rdb := &fakeRedis{keys: make(map[string]time.Duration)}
	g := &Guard{rdb: rdb, ttl: time.Hour}
	ctx := context.Background()

	seen, err := g.Seen(ctx, "txn-1:paid")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, g.Mark(ctx, "txn-1:paid"))
	seen, err = g.Seen(ctx, "txn-1:paid")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.Equal(t, time.Hour, rdb.keys["dedup:payment:txn-1:paid"])

	seen, err = g.Seen(ctx, "txn-1:expired")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuard_Errors(t *testing.T) {
	rdb := &fakeRedis{keys: make(map[string]time.Duration), err: errors.New("connection refused")}
	g := &Guard{rdb: rdb, ttl: time.Hour}

	_, err := g.Seen(context.Background(), "k")
	require.Error(t, err)
	require.Error(t, g.Mark(context.Background(), "k"))
}

func TestNew_DefaultTTL(t *testing.T) {
	g := New(NewClient("localhost:0"), 0)
	assert.Equal(t, DefaultTTL, g.ttl)
}
