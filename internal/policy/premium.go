package policy

import (
	"context"
	"fmt"

	"github.com/dyluth/steamhub/pkg/records"
)

const (
	premiumUsersPath = "users"
	premiumSeparator = ","
)

// ServerMember is a user and the roles they hold on a server.
type ServerMember struct {
	ID    string
	Roles []string
}

// PremiumUsers returns every premium user ID.
func (r *Resolver) PremiumUsers(ctx context.Context) ([]string, error) {
	raw, err := r.premium.GetOr(ctx, premiumUsersPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read premium users: %w", err)
	}
	return records.SplitList(raw, premiumSeparator), nil
}

// IsPremium reports whether userID is a premium user.
func (r *Resolver) IsPremium(ctx context.Context, userID string) (bool, error) {
	users, err := r.PremiumUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

// SetPremiumUsers replaces the premium user list.
func (r *Resolver) SetPremiumUsers(ctx context.Context, users []string) error {
	return r.premium.Set(ctx, premiumUsersPath, records.JoinList(users, premiumSeparator))
}

// AddPremiumUsers adds users to the premium list, skipping existing ones.
func (r *Resolver) AddPremiumUsers(ctx context.Context, users ...string) error {
	current, err := r.PremiumUsers(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(current))
	for _, u := range current {
		seen[u] = true
	}
	for _, u := range users {
		if !seen[u] {
			current = append(current, u)
			seen[u] = true
		}
	}
	return r.SetPremiumUsers(ctx, current)
}

// SyncPremium replaces the premium list with every member holding at least
// one of premiumRoles, and returns that list.
func (r *Resolver) SyncPremium(ctx context.Context, members []ServerMember, premiumRoles []string) ([]string, error) {
	roles := make(map[string]bool, len(premiumRoles))
	for _, role := range premiumRoles {
		roles[role] = true
	}

	users := []string{}
	for _, m := range members {
		for _, role := range m.Roles {
			if roles[role] {
				users = append(users, m.ID)
				break
			}
		}
	}

	if err := r.SetPremiumUsers(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}
