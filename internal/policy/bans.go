package policy

import (
	"context"
	"fmt"

	"github.com/dyluth/steamhub/pkg/records"
)

// BanCategory is the scope a ban record is keyed under.
type BanCategory string

const (
	BanUser    BanCategory = "user"
	BanChannel BanCategory = "channel"
	BanServer  BanCategory = "server"
)

// BanAll bans every command.
const BanAll = "*"

const banSeparator = ";"

// Validate checks the category is one of the known scopes.
func (c BanCategory) Validate() error {
	switch c {
	case BanUser, BanChannel, BanServer:
		return nil
	default:
		return fmt.Errorf("invalid ban category: %s (must be 'user', 'channel', or 'server')", c)
	}
}

func (r *Resolver) banTokens(ctx context.Context, category BanCategory, id string) ([]string, error) {
	raw, err := r.bans.GetOr(ctx, records.Path(string(category), id), "")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s ban for %s: %w", category, id, err)
	}
	return records.SplitList(raw, banSeparator), nil
}

// IsBanned reports whether commandKey, or every command, is banned for id.
func (r *Resolver) IsBanned(ctx context.Context, category BanCategory, id, commandKey string) (bool, error) {
	tokens, err := r.banTokens(ctx, category, id)
	if err != nil {
		return false, err
	}
	for _, t := range tokens {
		if t == commandKey || t == BanAll {
			return true, nil
		}
	}
	return false, nil
}

// Ban adds command keys (or BanAll) to the ban record for id.
func (r *Resolver) Ban(ctx context.Context, category BanCategory, id string, commandKeys ...string) error {
	if err := category.Validate(); err != nil {
		return err
	}
	tokens, err := r.banTokens(ctx, category, id)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		seen[t] = true
	}
	for _, k := range commandKeys {
		if k != "" && !seen[k] {
			tokens = append(tokens, k)
			seen[k] = true
		}
	}
	return r.bans.Set(ctx, records.Path(string(category), id), records.JoinList(tokens, banSeparator))
}

// Unban removes command keys from the ban record for id. The record is
// deleted once it is empty.
func (r *Resolver) Unban(ctx context.Context, category BanCategory, id string, commandKeys ...string) error {
	if err := category.Validate(); err != nil {
		return err
	}
	tokens, err := r.banTokens(ctx, category, id)
	if err != nil {
		return err
	}

	drop := make(map[string]bool, len(commandKeys))
	for _, k := range commandKeys {
		drop[k] = true
	}
	kept := tokens[:0]
	for _, t := range tokens {
		if !drop[t] {
			kept = append(kept, t)
		}
	}

	path := records.Path(string(category), id)
	if len(kept) == 0 {
		return r.bans.Delete(ctx, path)
	}
	return r.bans.Set(ctx, path, records.JoinList(kept, banSeparator))
}
