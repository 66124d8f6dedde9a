package settings

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/steamhub/pkg/records"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client := records.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestPrefixPrecedence(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	got, err := s.Prefix(ctx, "c1", "s1", DefaultPrefix)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefix, got)

	require.NoError(t, s.SetPrefix(ctx, "s1", "!", true))
	got, err = s.Prefix(ctx, "c1", "s1", DefaultPrefix)
	require.NoError(t, err)
	assert.Equal(t, "!", got)

	require.NoError(t, s.SetPrefix(ctx, "c1", "?", false))
	got, err = s.Prefix(ctx, "c1", "s1", DefaultPrefix)
	require.NoError(t, err)
	assert.Equal(t, "?", got)

	// Direct messages have no server.
	got, err = s.Prefix(ctx, "dm", "", DefaultPrefix)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefix, got)
}

func TestSetPrefixClears(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetPrefix(ctx, "s1", "!", true))
	assert.True(t, mr.Exists("prefixes::server::s1"))

	require.NoError(t, s.SetPrefix(ctx, "s1", DefaultPrefix, true))
	assert.False(t, mr.Exists("prefixes::server::s1"))

	require.NoError(t, s.SetPrefix(ctx, "c1", "!", false))
	require.NoError(t, s.SetPrefix(ctx, "c1", "", false))
	assert.False(t, mr.Exists("prefixes::channel::c1"))
}

func TestCurrency(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	got, err := s.Currency(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Currency{Code: "GBP", Symbol: "£"}, got)

	require.NoError(t, s.SetCurrency(ctx, "u1", Currency{Code: "EUR", Symbol: "€"}))
	got, err = s.Currency(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Currency{Code: "EUR", Symbol: "€"}, got)

	assert.Error(t, s.SetCurrency(ctx, "u1", Currency{}))
}

func TestCountry(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	got, err := s.Country(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "gb", got)

	require.NoError(t, s.SetCountry(ctx, "u1", "US"))
	got, err = s.Country(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "us", got)
}

func TestNames(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	got, err := s.Name(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "unknown", got)

	name, saved, err := s.SavedName(ctx, "u1", "gaben")
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, "gaben", name)

	require.NoError(t, s.SetName(ctx, "u1", "robin"))

	got, err = s.Name(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "robin", got)

	name, saved, err = s.SavedName(ctx, "u1", "gaben")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, "robin", name)
}

func TestSavedMark(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	got, err := s.SavedMark(ctx, "u1", false)
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, s.SetMark(ctx, "u1", "None"))
	got, err = s.SavedMark(ctx, "u1", false)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = s.SavedMark(ctx, "u1", true)
	require.NoError(t, err)
	assert.True(t, got)

	require.NoError(t, s.SetMark(ctx, "u1", "yes"))
	got, err = s.SavedMark(ctx, "u1", false)
	require.NoError(t, err)
	assert.True(t, got)
}
