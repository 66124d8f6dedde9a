// Package settings holds small per-user and per-scope preferences: command
// prefixes, currency, country, saved profile names and marks.
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/steamhub/pkg/records"
)

// Defaults returned when nothing is stored.
const (
	DefaultPrefix         = "steam "
	DefaultCurrencyCode   = "GBP"
	DefaultCurrencySymbol = "£"
	DefaultCountry        = "gb"
	DefaultName           = "unknown"

	markNone = "none"
)

// Currency is a user's display currency.
type Currency struct {
	Code   string
	Symbol string
}

// Store gives access to every settings namespace.
type Store struct {
	prefixes   *records.Store
	currencies *records.Store
	countries  *records.Store
	names      *records.Store
	marks      *records.Store
}

// New creates a settings store.
func New(client *records.Client) *Store {
	return &Store{
		prefixes:   client.Namespace(records.NamespacePrefixes),
		currencies: client.Namespace(records.NamespaceCurrencies),
		countries:  client.Namespace(records.NamespaceCountries),
		names:      client.Namespace(records.NamespaceNames),
		marks:      client.Namespace(records.NamespaceMarks),
	}
}

func prefixPath(id string, server bool) string {
	if server {
		return records.Path("server", id)
	}
	return records.Path("channel", id)
}

// Prefix returns the command prefix for a channel: the channel's own prefix,
// then the server's, then def. serverID may be empty for direct messages.
func (s *Store) Prefix(ctx context.Context, channelID, serverID, def string) (string, error) {
	if channelID != "" {
		prefix, ok, err := s.prefixes.Lookup(ctx, prefixPath(channelID, false))
		if err != nil || ok {
			return prefix, err
		}
	}
	if serverID != "" {
		prefix, ok, err := s.prefixes.Lookup(ctx, prefixPath(serverID, true))
		if err != nil || ok {
			return prefix, err
		}
	}
	return def, nil
}

// SetPrefix stores a channel or server prefix. An empty prefix or
// DefaultPrefix removes the override instead.
func (s *Store) SetPrefix(ctx context.Context, id, prefix string, server bool) error {
	if prefix == "" || prefix == DefaultPrefix {
		return s.prefixes.Delete(ctx, prefixPath(id, server))
	}
	return s.prefixes.Set(ctx, prefixPath(id, server), prefix)
}

// Currency returns a user's currency, or GBP.
func (s *Store) Currency(ctx context.Context, userID string) (Currency, error) {
	code, ok, err := s.currencies.Lookup(ctx, records.Path("code", userID))
	if err != nil {
		return Currency{}, err
	}
	if !ok {
		return Currency{Code: DefaultCurrencyCode, Symbol: DefaultCurrencySymbol}, nil
	}
	symbol, err := s.currencies.GetOr(ctx, records.Path("symbol", userID), "")
	if err != nil {
		return Currency{}, err
	}
	return Currency{Code: code, Symbol: symbol}, nil
}

// SetCurrency stores a user's currency.
func (s *Store) SetCurrency(ctx context.Context, userID string, c Currency) error {
	if c.Code == "" {
		return fmt.Errorf("currency code is required")
	}
	if err := s.currencies.Set(ctx, records.Path("code", userID), c.Code); err != nil {
		return err
	}
	return s.currencies.Set(ctx, records.Path("symbol", userID), c.Symbol)
}

// Country returns a user's store country code, or "gb".
func (s *Store) Country(ctx context.Context, userID string) (string, error) {
	return s.countries.GetOr(ctx, userID, DefaultCountry)
}

// SetCountry stores a user's country code in lower case.
func (s *Store) SetCountry(ctx context.Context, userID, country string) error {
	return s.countries.Set(ctx, userID, strings.ToLower(country))
}

// Name returns a user's saved profile name, or "unknown".
func (s *Store) Name(ctx context.Context, userID string) (string, error) {
	return s.names.GetOr(ctx, userID, DefaultName)
}

// SavedName returns the stored name for userID if there is one, else term.
func (s *Store) SavedName(ctx context.Context, userID, term string) (string, bool, error) {
	return lookupOr(ctx, s.names, userID, term)
}

// SetName saves a user's profile name.
func (s *Store) SetName(ctx context.Context, userID, name string) error {
	return s.names.Set(ctx, userID, name)
}

// SavedMark reports true when a mark other than "none" is stored for key,
// and otherwise returns marked unchanged.
func (s *Store) SavedMark(ctx context.Context, key string, marked bool) (bool, error) {
	mark, ok, err := s.marks.Lookup(ctx, key)
	if err != nil {
		return false, err
	}
	if ok && strings.ToLower(mark) != markNone {
		return true, nil
	}
	return marked, nil
}

// SetMark stores a mark; "none" disables it.
func (s *Store) SetMark(ctx context.Context, key, mark string) error {
	return s.marks.Set(ctx, key, mark)
}

func lookupOr(ctx context.Context, s *records.Store, path, def string) (string, bool, error) {
	value, ok, err := s.Lookup(ctx, path)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return def, false, nil
	}
	return value, true, nil
}
