package language

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubLoadDir(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()
	hub := NewHub(client, "english", nil)

	loaded, err := hub.LoadDir(ctx, "testdata")
	require.NoError(t, err)
	assert.Equal(t, []string{"english", "german"}, loaded)

	german, ok := hub.Catalog("german")
	require.True(t, ok)

	got, err := german.Message(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "Hallo", got)

	got, err = german.Cooldown(ctx, "game")
	require.NoError(t, err)
	assert.Equal(t, "Please wait %t seconds", got)

	got, err = german.Exception(ctx, "generic")
	require.NoError(t, err)
	assert.Equal(t, "Something went wrong", got)
}

func TestHubLoadDir_MissingDefault(t *testing.T) {
	client, _ := setupClient(t)
	hub := NewHub(client, "klingon", nil)

	_, err := hub.LoadDir(context.Background(), "testdata")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `default language "klingon" not found`)
}

func TestHubForActor(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()
	hub := NewHub(client, "english", nil)

	_, err := hub.LoadDir(ctx, "testdata")
	require.NoError(t, err)
	_, err = hub.Load(ctx, "french", Definition{SectionMessages: {"greeting": Line("Bonjour")}}, "english")
	require.NoError(t, err)

	t.Run("default when nothing selected", func(t *testing.T) {
		c, err := hub.ForActor(ctx, "u1", "s1")
		require.NoError(t, err)
		assert.Equal(t, "english", c.Name())
	})

	t.Run("server selection", func(t *testing.T) {
		require.NoError(t, hub.SetLanguage(ctx, "s1", "german", true))
		c, err := hub.ForActor(ctx, "u1", "s1")
		require.NoError(t, err)
		assert.Equal(t, "german", c.Name())
	})

	t.Run("user selection beats server", func(t *testing.T) {
		require.NoError(t, hub.SetLanguage(ctx, "u1", "french", false))
		c, err := hub.ForActor(ctx, "u1", "s1")
		require.NoError(t, err)
		assert.Equal(t, "french", c.Name())
	})

	t.Run("clearing user selection falls back to server", func(t *testing.T) {
		require.NoError(t, hub.ClearLanguage(ctx, "u1", false))
		c, err := hub.ForActor(ctx, "u1", "s1")
		require.NoError(t, err)
		assert.Equal(t, "german", c.Name())
	})

	t.Run("direct messages ignore server selection", func(t *testing.T) {
		c, err := hub.ForActor(ctx, "u1", "")
		require.NoError(t, err)
		assert.Equal(t, "english", c.Name())
	})

	t.Run("unknown language rejected", func(t *testing.T) {
		err := hub.SetLanguage(ctx, "u2", "klingon", false)
		assert.Error(t, err)
	})
}

func TestHubLoad_UnknownFallback(t *testing.T) {
	client, _ := setupClient(t)
	hub := NewHub(client, "english", nil)

	_, err := hub.Load(context.Background(), "german", Definition{}, "english")
	assert.Error(t, err)
}
