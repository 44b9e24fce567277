package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCmdable struct {
	values      map[string]int64
	expireCalls []string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string]int64{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.values[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(m.values[key])
	return cmd
}

func (m *mockCmdable) Expire(ctx context.Context, key string, _ time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, key)
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "otp:a@x.com", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []string{"stockroute:rate_limit:otp:a@x.com"}, mock.expireCalls)

	allowed, _, err = client.FixedWindowAllow(ctx, "otp:a@x.com", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, count, err = client.FixedWindowAllow(ctx, "otp:a@x.com", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(3), count)
	assert.Len(t, mock.expireCalls, 1)
}

func TestCloseNilClient(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
}
