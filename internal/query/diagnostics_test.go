package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins(t *testing.T) {
	ctx := context.Background()
	r := Builtins(ShardInfo{
		ID:        2,
		Count:     5,
		Version:   "v1.2.3",
		StartedAt: time.Now().Add(-90 * time.Second),
		WatcherCount: func(ctx context.Context) (int, error) {
			return 7, nil
		},
	})

	assert.Equal(t, []string{"goroutines", "memory", "shard", "uptime", "version", "watchers"}, r.Names())

	run := func(name string) string {
		d, ok := r.Lookup(name)
		require.True(t, ok, name)
		out, err := d(ctx)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, "2/5", run("shard"))
	assert.Equal(t, "v1.2.3", run("version"))
	assert.Equal(t, "7", run("watchers"))
	assert.Equal(t, "1m30s", run("uptime"))
	assert.NotEmpty(t, run("goroutines"))
	assert.Contains(t, run("memory"), "alloc=")
}

func TestBuiltinsWithoutWatchers(t *testing.T) {
	r := Builtins(ShardInfo{Count: 1, StartedAt: time.Now()})
	_, ok := r.Lookup("watchers")
	assert.False(t, ok)
}

func TestBuiltinWatcherError(t *testing.T) {
	r := Builtins(ShardInfo{
		Count:     1,
		StartedAt: time.Now(),
		WatcherCount: func(ctx context.Context) (int, error) {
			return 0, errors.New("store unavailable")
		},
	})
	d, ok := r.Lookup("watchers")
	require.True(t, ok)
	_, err := d(context.Background())
	assert.Error(t, err)
}
