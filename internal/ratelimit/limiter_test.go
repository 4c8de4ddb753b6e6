package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	r, err := ParseRate("300-M")
	require.NoError(t, err)
	require.Equal(t, Rate{Max: 300, Window: time.Minute}, r)

	r, err = ParseRate("10-s")
	require.NoError(t, err)
	require.Equal(t, Rate{Max: 10, Window: time.Second}, r)

	for _, bad := range []string{"", "300", "-M", "0-M", "x-M", "10-Y"} {
		_, err := ParseRate(bad)
		require.Error(t, err, "rate %q must be rejected", bad)
	}
}

func TestAllowWithinBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := Limiter{Client: client, Prefix: "rl:"}
	rate := Rate{Max: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		allowed, _, _, err := l.Allow(context.Background(), "t1:1.2.3.4", rate)
		require.NoError(t, err)
		require.True(t, allowed, "hit %d should pass", i+1)
	}
	allowed, remaining, _, err := l.Allow(context.Background(), "t1:1.2.3.4", rate)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)
}

func TestAllowIsolatesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := Limiter{Client: client, Prefix: "rl:"}
	rate := Rate{Max: 1, Window: time.Minute}

	allowed, _, _, err := l.Allow(context.Background(), "t1:a", rate)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = l.Allow(context.Background(), "t2:a", rate)
	require.NoError(t, err)
	require.True(t, allowed, "other tenant must have its own budget")
}

func TestAllowNilClientFailsOpen(t *testing.T) {
	l := Limiter{}
	allowed, _, _, err := l.Allow(context.Background(), "k", Rate{Max: 1, Window: time.Minute})
	require.NoError(t, err)
	require.True(t, allowed)
}
