package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/steamhub/pkg/records"
)

type fakeMember struct {
	roles       map[string]bool
	permissions map[string]bool
}

func (m fakeMember) HasRole(roleID string) bool { return m.roles[roleID] }

func (m fakeMember) Permission(name string) (bool, bool) {
	granted, known := m.permissions[name]
	return granted, known
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func setupResolver(t *testing.T, opts Options) (*Resolver, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client := records.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewResolver(client, opts), mr
}

func TestPermissions(t *testing.T) {
	r, mr := setupResolver(t, Options{})
	ctx := context.Background()

	t.Run("add appends without duplicates", func(t *testing.T) {
		require.NoError(t, r.AddPermissions(ctx, "game", ScopeServer, "s1", "manage_messages", RoleToken("42")))
		require.NoError(t, r.AddPermissions(ctx, "game", ScopeServer, "s1", "manage_messages", "embed_links"))

		tokens, err := r.GetPermissions(ctx, "game", ScopeServer, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"manage_messages", "role|42", "embed_links"}, tokens)

		length, err := mr.Get("permissions::game::server::s1::length")
		require.NoError(t, err)
		assert.Equal(t, "3", length)
	})

	t.Run("remove returns removed tokens", func(t *testing.T) {
		removed, err := r.RemovePermissions(ctx, "game", ScopeServer, "s1", "manage_messages", "absent")
		require.NoError(t, err)
		assert.Equal(t, []string{"manage_messages"}, removed)

		tokens, err := r.GetPermissions(ctx, "game", ScopeServer, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"role|42", "embed_links"}, tokens)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, r.ClearPermissions(ctx, "game", ScopeServer, "s1"))
		tokens, err := r.GetPermissions(ctx, "game", ScopeServer, "s1")
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})
}

func TestCheckPermissions(t *testing.T) {
	r, _ := setupResolver(t, Options{})
	ctx := context.Background()

	require.NoError(t, r.AddPermissions(ctx, "watch", ScopeServer, "s1", RoleToken("admins")))
	require.NoError(t, r.AddPermissions(ctx, "watch", ScopeChannel, "c1", RoleToken("mods"), "manage_channels"))

	tests := []struct {
		name   string
		member fakeMember
		want   bool
	}{
		{
			name:   "holds every role, permission granted",
			member: fakeMember{roles: map[string]bool{"admins": true, "mods": true}, permissions: map[string]bool{"manage_channels": true}},
			want:   true,
		},
		{
			name:   "holds every role, platform silent about permission",
			member: fakeMember{roles: map[string]bool{"admins": true, "mods": true}},
			want:   true,
		},
		{
			name:   "missing server role",
			member: fakeMember{roles: map[string]bool{"mods": true}},
			want:   false,
		},
		{
			name:   "missing channel role",
			member: fakeMember{roles: map[string]bool{"admins": true}},
			want:   false,
		},
		{
			name:   "permission explicitly denied",
			member: fakeMember{roles: map[string]bool{"admins": true, "mods": true}, permissions: map[string]bool{"manage_channels": false}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := Invocation{UserID: "u1", ChannelID: "c1", ServerID: "s1", CommandKey: "watch", Member: tt.member}
			got, err := r.CheckPermissions(ctx, inv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no entries allows", func(t *testing.T) {
		inv := Invocation{UserID: "u1", ChannelID: "c9", ServerID: "s9", CommandKey: "watch", Member: fakeMember{}}
		got, err := r.CheckPermissions(ctx, inv)
		require.NoError(t, err)
		assert.True(t, got)
	})
}

func TestBans(t *testing.T) {
	r, mr := setupResolver(t, Options{})
	ctx := context.Background()

	require.NoError(t, r.Ban(ctx, BanUser, "u1", "game", "search"))
	raw, err := mr.Get("global_bans::user::u1")
	require.NoError(t, err)
	assert.Equal(t, "game;search", raw)

	banned, err := r.IsBanned(ctx, BanUser, "u1", "game")
	require.NoError(t, err)
	assert.True(t, banned)

	banned, err = r.IsBanned(ctx, BanUser, "u1", "watch")
	require.NoError(t, err)
	assert.False(t, banned)

	t.Run("wildcard bans everything", func(t *testing.T) {
		require.NoError(t, r.Ban(ctx, BanChannel, "c1", BanAll))
		banned, err := r.IsBanned(ctx, BanChannel, "c1", "anything")
		require.NoError(t, err)
		assert.True(t, banned)
	})

	t.Run("unban removes tokens and empty records", func(t *testing.T) {
		require.NoError(t, r.Unban(ctx, BanUser, "u1", "game", "search"))
		assert.False(t, mr.Exists("global_bans::user::u1"))
	})

	t.Run("invalid category", func(t *testing.T) {
		err := r.Ban(ctx, BanCategory("planet"), "p", "game")
		assert.Error(t, err)
	})
}

func TestCheckBan(t *testing.T) {
	r, _ := setupResolver(t, Options{})
	ctx := context.Background()
	inv := Invocation{UserID: "u1", ChannelID: "c1", ServerID: "s1", CommandKey: "game", Member: fakeMember{}}

	require.NoError(t, r.CheckBan(ctx, inv))

	t.Run("server scope ban wins over clean user and channel", func(t *testing.T) {
		require.NoError(t, r.Ban(ctx, BanServer, "s1", "game"))
		defer r.Unban(ctx, BanServer, "s1", "game")

		err := r.CheckBan(ctx, inv)
		assert.True(t, errors.Is(err, ErrBanned))
	})

	t.Run("direct messages skip server scope", func(t *testing.T) {
		require.NoError(t, r.Ban(ctx, BanServer, "s1", "game"))
		defer r.Unban(ctx, BanServer, "s1", "game")

		dm := inv
		dm.ServerID = ""
		assert.NoError(t, r.CheckBan(ctx, dm))
	})

	t.Run("permission denied after bans", func(t *testing.T) {
		require.NoError(t, r.AddPermissions(ctx, "game", ScopeChannel, "c1", RoleToken("vip")))
		defer r.ClearPermissions(ctx, "game", ScopeChannel, "c1")

		err := r.CheckBan(ctx, inv)
		assert.True(t, errors.Is(err, ErrCommandPermissionDenied))
	})
}

func TestCooldowns(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	r, _ := setupResolver(t, Options{
		Cooldowns:      map[string]time.Duration{"game": 30 * time.Second},
		CooldownExempt: []string{"owner"},
		Now:            clock.Now,
	})
	ctx := context.Background()

	require.NoError(t, r.CheckCooldown(ctx, "u1", "game", ""))
	require.NoError(t, r.StartCooldown(ctx, "u1", "game"))

	clock.t = clock.t.Add(10 * time.Second)
	err := r.CheckCooldown(ctx, "u1", "game", "wait %t of %cd seconds")
	var cdErr *CooldownError
	require.True(t, errors.As(err, &cdErr))
	assert.Equal(t, 20*time.Second, cdErr.Remaining)
	assert.Equal(t, "wait 20 of 30 seconds", cdErr.Error())

	t.Run("exempt users pass", func(t *testing.T) {
		require.NoError(t, r.StartCooldown(ctx, "owner", "game"))
		assert.NoError(t, r.CheckCooldown(ctx, "owner", "game", ""))
	})

	t.Run("unconfigured names are not tracked", func(t *testing.T) {
		require.NoError(t, r.StartCooldown(ctx, "u1", "ping"))
		assert.NoError(t, r.CheckCooldown(ctx, "u1", "ping", ""))
	})

	t.Run("expires", func(t *testing.T) {
		clock.t = clock.t.Add(21 * time.Second)
		assert.NoError(t, r.CheckCooldown(ctx, "u1", "game", ""))
	})
}

func TestCooldownTrackerReset(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	r, _ := setupResolver(t, Options{
		Cooldowns: map[string]time.Duration{"game": time.Minute},
		Now:       clock.Now,
	})
	ctx := context.Background()

	tracker := r.NewCooldownTracker()
	require.NoError(t, tracker.Reset(ctx))

	require.NoError(t, tracker.Check(ctx, "u1", "game", ""))
	require.NoError(t, tracker.Start(ctx, "u1", "game"))
	require.Error(t, tracker.Check(ctx, "u1", "game", ""))

	require.NoError(t, tracker.Reset(ctx))
	assert.NoError(t, tracker.Check(ctx, "u1", "game", ""))
}

func TestPremium(t *testing.T) {
	r, _ := setupResolver(t, Options{})
	ctx := context.Background()

	premium, err := r.IsPremium(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, premium)

	require.NoError(t, r.AddPremiumUsers(ctx, "u1", "u2"))
	require.NoError(t, r.AddPremiumUsers(ctx, "u2", "u3"))
	users, err := r.PremiumUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, users)

	synced, err := r.SyncPremium(ctx, []ServerMember{
		{ID: "a", Roles: []string{"gold"}},
		{ID: "b", Roles: []string{"bronze"}},
		{ID: "c", Roles: []string{"bronze", "silver"}},
	}, []string{"gold", "silver"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, synced)

	premium, err = r.IsPremium(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, premium)
}
