package marks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	r "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("SONAR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SONAR_TEST_REDIS_ADDR not set")
	}
	rdb := r.NewClient(&r.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	// Unique prefix per test run so parallel runs never share keys
	return NewRedisStore(rdb, "sonar:test:"+uuid.NewString()+":")
}

func TestRedisStore_ClaimProtocol(t *testing.T) {
	store := newRedisStore(t)
	c := newClock()
	svc := NewService(store, nil, WithClock(c.Now))
	ctx := context.Background()

	assert.True(t, svc.BeginStep(ctx, begin("step:v1")))
	c.Advance(time.Millisecond)
	assert.False(t, svc.BeginStep(ctx, begin("step:v1")))

	c.Advance(600000 * time.Millisecond)
	assert.True(t, svc.BeginStep(ctx, begin("step:v1")))

	svc.CompleteStep(ctx, Complete{CandidateID: "cand1", JobID: "job1", Step: "step:v1", Metadata: map[string]any{"ok": true}})
	c.Advance(time.Hour)
	assert.False(t, svc.BeginStep(ctx, begin("step:v1")))

	mark, ok := svc.Get(ctx, Key{CandidateID: "cand1", JobID: "job1", Step: "step:v1"}).Get()
	require.True(t, ok)
	require.NotNil(t, mark)
	assert.Equal(t, StatusCompleted, mark.Status)
	assert.Equal(t, true, mark.Metadata["ok"])
}

func TestRedisStore_Unreachable(t *testing.T) {
	rdb := r.NewClient(&r.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	svc := NewService(NewRedisStore(rdb, "sonar:"), nil)
	assert.True(t, svc.BeginStep(context.Background(), begin("step:v1")), "unreachable store fails open")
}
