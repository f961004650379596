package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemoryCache_SetGet(t *testing.T) {
	c := NewInMemoryCache(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("value"), time.Minute))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestInMemoryCache_MissAndExpiry(t *testing.T) {
	c := NewInMemoryCache(zap.NewNop())
	ctx := context.Background()

	_, err := c.Get(ctx, "absent")
	assert.Equal(t, ErrCacheMiss, err)

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, err = c.Get(ctx, "short")
	assert.Equal(t, ErrCacheMiss, err)
}

func TestInMemoryCache_Delete(t *testing.T) {
	c := NewInMemoryCache(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k1"))

	_, err := c.Get(ctx, "k1")
	assert.Equal(t, ErrCacheMiss, err)
}

func TestInMemoryCache_DeleteByPattern(t *testing.T) {
	c := NewInMemoryCache(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "stock:status:WH-A:u1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "stock:status:WH-A:u2", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "stock:status:WH-B:u1", []byte("c"), time.Minute))

	require.NoError(t, c.DeleteByPattern(ctx, "stock:status:WH-A:*"))

	_, err := c.Get(ctx, "stock:status:WH-A:u1")
	assert.Equal(t, ErrCacheMiss, err)
	_, err = c.Get(ctx, "stock:status:WH-B:u1")
	assert.NoError(t, err)
}

func TestJSONHelpers_RoundTrip(t *testing.T) {
	c := NewInMemoryCache(zap.NewNop())
	ctx := context.Background()

	type status struct {
		UnitKey string `json:"unitKey"`
		OnHand  int    `json:"onHand"`
	}

	require.NoError(t, SetJSON(ctx, c, "k", status{UnitKey: "product:p:v", OnHand: 7}, time.Minute))

	var got status
	require.NoError(t, GetJSON(ctx, c, "k", &got))
	assert.Equal(t, "product:p:v", got.UnitKey)
	assert.Equal(t, 7, got.OnHand)
}

func TestGetJSON_MissPassesThrough(t *testing.T) {
	c := NewInMemoryCache(zap.NewNop())

	var dest map[string]interface{}
	err := GetJSON(context.Background(), c, "absent", &dest)
	assert.Equal(t, ErrCacheMiss, err)
}
