// Package language stores message catalogs in the record store and resolves
// which catalog applies to an actor.
package language

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/steamhub/pkg/records"
)

// ErrorMarker prefixes error texts so the transport delivers them in its
// quiet/marked mode.
const ErrorMarker = "~"

// UnresolvedKeyError is returned when a key is missing from a catalog and
// every catalog in its fallback chain.
type UnresolvedKeyError struct {
	Section string
	Key     string
}

func (e *UnresolvedKeyError) Error() string {
	return fmt.Sprintf("failed to resolve language key %s/%s", e.Section, e.Key)
}

// Catalog is one named language stored under languageshub::<name>.
type Catalog struct {
	name     string
	store    *records.Store
	fallback *Catalog
}

// NewCatalog returns a handle on the named catalog. fallback may be nil.
func NewCatalog(client *records.Client, name string, fallback *Catalog) *Catalog {
	return &Catalog{
		name:     name,
		store:    client.Namespace(records.CatalogNamespace(name)),
		fallback: fallback,
	}
}

// Name returns the catalog name.
func (c *Catalog) Name() string {
	return c.name
}

// Fallback returns the catalog consulted for missing keys, or nil.
func (c *Catalog) Fallback() *Catalog {
	return c.fallback
}

// keysPath holds the paths written by the last Load, so a reload can remove
// keys the new definition no longer has.
const keysPath = "__keys"

// Load writes every leaf of def into the store. Lists are written as arrays,
// single lines as scalars; the other form of the same key is removed. Keys
// written by an earlier Load and absent from def are deleted, so they resolve
// through the fallback chain again.
func (c *Catalog) Load(ctx context.Context, def Definition) error {
	previous, err := c.store.GetArray(ctx, keysPath)
	if err != nil {
		return fmt.Errorf("failed to read keys of catalog %s: %w", c.name, err)
	}

	paths := make([]string, 0, len(previous))
	current := make(map[string]bool)
	for section, entries := range def {
		for key := range entries {
			path := records.Path(section, key)
			current[path] = true
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	for _, path := range previous {
		if current[path] {
			continue
		}
		if err := c.store.Delete(ctx, path); err != nil {
			return err
		}
		if err := c.store.DeleteArray(ctx, path); err != nil {
			return err
		}
	}

	for section, entries := range def {
		for key, value := range entries {
			path := records.Path(section, key)
			if value.IsList {
				if err := c.store.Delete(ctx, path); err != nil {
					return err
				}
				if err := c.store.SetArray(ctx, path, value.Lines); err != nil {
					return fmt.Errorf("failed to load %s/%s: %w", section, key, err)
				}
				continue
			}
			if err := c.store.DeleteArray(ctx, path); err != nil {
				return err
			}
			line := ""
			if len(value.Lines) > 0 {
				line = value.Lines[0]
			}
			if err := c.store.Set(ctx, path, line); err != nil {
				return fmt.Errorf("failed to load %s/%s: %w", section, key, err)
			}
		}
	}
	return c.store.SetArray(ctx, keysPath, paths)
}

// Lines resolves a key to its lines without joining them. A scalar entry is
// one line. Missing keys are looked up in the fallback chain.
func (c *Catalog) Lines(ctx context.Context, section, key string) ([]string, error) {
	visited := make(map[*Catalog]bool)
	for cat := c; cat != nil && !visited[cat]; cat = cat.fallback {
		visited[cat] = true

		path := records.Path(section, key)
		isList, err := cat.store.ArrayExists(ctx, path)
		if err != nil {
			return nil, err
		}
		if isList {
			return cat.store.GetArray(ctx, path)
		}

		value, ok, err := cat.store.Lookup(ctx, path)
		if err != nil {
			return nil, err
		}
		if ok {
			return []string{value}, nil
		}
	}
	return nil, &UnresolvedKeyError{Section: section, Key: key}
}

// Get resolves a key and joins list entries with newlines.
func (c *Catalog) Get(ctx context.Context, section, key string) (string, error) {
	lines, err := c.Lines(ctx, section, key)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// Message resolves a key in the messages section.
func (c *Catalog) Message(ctx context.Context, key string) (string, error) {
	return c.Get(ctx, SectionMessages, key)
}

// Error resolves a key in the errors section, prefixed with ErrorMarker.
func (c *Catalog) Error(ctx context.Context, key string) (string, error) {
	text, err := c.Get(ctx, SectionErrors, key)
	if err != nil {
		return "", err
	}
	return ErrorMarker + text, nil
}

// Cooldown resolves a key in the cooldowns section.
func (c *Catalog) Cooldown(ctx context.Context, key string) (string, error) {
	return c.Get(ctx, SectionCooldowns, key)
}

// Exception resolves a key in the exceptions section.
func (c *Catalog) Exception(ctx context.Context, key string) (string, error) {
	return c.Get(ctx, SectionExceptions, key)
}
