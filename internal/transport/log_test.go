package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dyluth/steamhub/internal/watcher"
)

func TestLogDeliver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := NewLog(zap.New(core))
	ctx := context.Background()

	require.NoError(t, tr.Deliver(ctx, "chan1", watcher.KindChannel, "[1]:  on sale"))
	require.NoError(t, tr.Deliver(ctx, "chan1", watcher.KindChannel, "~You are banned"))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "[1]:  on sale", entries[0].ContextMap()["text"])
	assert.Equal(t, "chan1", entries[0].ContextMap()["destination"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "You are banned", entries[1].ContextMap()["text"])
}

func TestLogResolveUser(t *testing.T) {
	dest, err := NewLog(nil).ResolveUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", dest)
}
