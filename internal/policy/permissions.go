package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/steamhub/pkg/records"
)

// RoleTokenPrefix marks a permission token that requires a role.
const RoleTokenPrefix = "role|"

// ScopeKind is the breadth a permission entry applies at.
type ScopeKind string

const (
	ScopeServer  ScopeKind = "server"
	ScopeChannel ScopeKind = "channel"
)

// RoleToken returns the permission token requiring roleID.
func RoleToken(roleID string) string {
	return RoleTokenPrefix + roleID
}

func permissionPath(key string, kind ScopeKind, scopeID string) string {
	return records.Path(key, string(kind), scopeID)
}

// GetPermissions returns the ordered permission tokens required for a command
// at one scope. Returns an empty slice when none are configured.
func (r *Resolver) GetPermissions(ctx context.Context, key string, kind ScopeKind, scopeID string) ([]string, error) {
	tokens, err := r.permissions.GetArray(ctx, permissionPath(key, kind, scopeID))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s permissions for %s: %w", kind, key, err)
	}
	return tokens, nil
}

// AddPermissions appends tokens not already required at the scope.
// The whole array is rewritten.
func (r *Resolver) AddPermissions(ctx context.Context, key string, kind ScopeKind, scopeID string, tokens ...string) error {
	current, err := r.GetPermissions(ctx, key, kind, scopeID)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(current))
	for _, t := range current {
		seen[t] = true
	}
	for _, t := range tokens {
		if !seen[t] {
			current = append(current, t)
			seen[t] = true
		}
	}
	return r.permissions.SetArray(ctx, permissionPath(key, kind, scopeID), current)
}

// RemovePermissions drops tokens from the scope and returns the ones that were present.
func (r *Resolver) RemovePermissions(ctx context.Context, key string, kind ScopeKind, scopeID string, tokens ...string) ([]string, error) {
	current, err := r.GetPermissions(ctx, key, kind, scopeID)
	if err != nil {
		return nil, err
	}

	drop := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		drop[t] = true
	}

	kept := make([]string, 0, len(current))
	var removed []string
	for _, t := range current {
		if drop[t] {
			removed = append(removed, t)
		} else {
			kept = append(kept, t)
		}
	}

	if err := r.permissions.SetArray(ctx, permissionPath(key, kind, scopeID), kept); err != nil {
		return nil, err
	}
	return removed, nil
}

// ClearPermissions removes every token at the scope.
func (r *Resolver) ClearPermissions(ctx context.Context, key string, kind ScopeKind, scopeID string) error {
	return r.permissions.DeleteArray(ctx, permissionPath(key, kind, scopeID))
}

// CheckPermissions reports whether the acting member satisfies every token
// required for inv.CommandKey at server scope and at channel scope.
//
// Role tokens must all be held. A bare permission name fails only when the
// platform explicitly reports it as not granted; unknown names are allowed.
func (r *Resolver) CheckPermissions(ctx context.Context, inv Invocation) (bool, error) {
	var tokens []string
	if inv.ServerID != "" {
		server, err := r.GetPermissions(ctx, inv.CommandKey, ScopeServer, inv.ServerID)
		if err != nil {
			return false, err
		}
		tokens = append(tokens, server...)
	}
	if inv.ChannelID != "" {
		channel, err := r.GetPermissions(ctx, inv.CommandKey, ScopeChannel, inv.ChannelID)
		if err != nil {
			return false, err
		}
		tokens = append(tokens, channel...)
	}

	for _, token := range tokens {
		if roleID, ok := strings.CutPrefix(token, RoleTokenPrefix); ok {
			if inv.Member == nil || !inv.Member.HasRole(roleID) {
				return false, nil
			}
			continue
		}
		if inv.Member == nil {
			continue
		}
		if granted, known := inv.Member.Permission(token); known && !granted {
			return false, nil
		}
	}
	return true, nil
}
