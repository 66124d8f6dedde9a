// Package policy decides whether a command may run: permissions granted at
// channel or server scope, bans at user, channel or server scope, per-user
// cooldowns and premium membership. All state lives in the record store.
package policy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/steamhub/internal/logging"
	"github.com/dyluth/steamhub/pkg/records"
)

// Member is the chat platform's view of the acting user in a channel.
type Member interface {
	// HasRole reports whether the user holds the role.
	HasRole(roleID string) bool
	// Permission reports the platform's flag for a named permission.
	// known is false when the platform says nothing about the name.
	Permission(name string) (granted bool, known bool)
}

// Invocation is the context the dispatch layer supplies for every command.
type Invocation struct {
	UserID     string
	ChannelID  string
	ServerID   string // Empty for direct messages
	CommandKey string
	Member     Member
}

// Options configures a Resolver.
type Options struct {
	Cooldowns      map[string]time.Duration // Command name -> cooldown duration
	CooldownExempt []string                 // User IDs never put on cooldown
	Logger         *zap.Logger
	Now            func() time.Time
}

// Resolver resolves effective permissions, bans, cooldowns and premium status.
type Resolver struct {
	permissions *records.Store
	bans        *records.Store
	cooldowns   *records.Store
	premium     *records.Store

	durations map[string]time.Duration
	exempt    map[string]bool
	logger    *zap.Logger
	now       func() time.Time
}

// NewResolver creates a resolver backed by client.
func NewResolver(client *records.Client, opts Options) *Resolver {
	exempt := make(map[string]bool, len(opts.CooldownExempt))
	for _, id := range opts.CooldownExempt {
		exempt[id] = true
	}
	durations := make(map[string]time.Duration, len(opts.Cooldowns))
	for name, d := range opts.Cooldowns {
		durations[name] = d
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		permissions: client.Namespace(records.NamespacePermissions),
		bans:        client.Namespace(records.NamespaceBans),
		cooldowns:   client.Namespace(records.NamespaceCooldowns),
		premium:     client.Namespace(records.NamespacePremium),
		durations:   durations,
		exempt:      exempt,
		logger:      logging.OrNop(opts.Logger),
		now:         now,
	}
}

// CheckBan gates a command invocation. It fails with ErrBanned if the command
// is banned at user, channel or server scope (any one suffices), then with
// ErrCommandPermissionDenied if CheckPermissions fails. It has no side effects.
func (r *Resolver) CheckBan(ctx context.Context, inv Invocation) error {
	scopes := []struct {
		category BanCategory
		id       string
	}{
		{BanUser, inv.UserID},
		{BanChannel, inv.ChannelID},
		{BanServer, inv.ServerID},
	}

	for _, scope := range scopes {
		if scope.id == "" {
			continue
		}
		banned, err := r.IsBanned(ctx, scope.category, scope.id, inv.CommandKey)
		if err != nil {
			return err
		}
		if banned {
			r.logger.Debug("command_banned",
				zap.String("command", inv.CommandKey),
				zap.String("category", string(scope.category)),
				zap.String("id", scope.id))
			return ErrBanned
		}
	}

	allowed, err := r.CheckPermissions(ctx, inv)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrCommandPermissionDenied
	}
	return nil
}
