package language

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dyluth/steamhub/internal/logging"
	"github.com/dyluth/steamhub/pkg/records"
)

const serverSelectionPrefix = "server"

// definitionExtensions are the file types LoadDir picks up.
var definitionExtensions = map[string]bool{
	".json": true,
	".yml":  true,
	".yaml": true,
}

// Hub tracks the loaded catalogs and each user's or server's selection.
//
// Selection order for an actor: the user's own choice, then the server's
// choice, then the default catalog.
type Hub struct {
	client      *records.Client
	selections  *records.Store
	defaultName string
	logger      *zap.Logger

	mu       sync.RWMutex
	catalogs map[string]*Catalog
}

// NewHub creates a hub whose default catalog is defaultName.
func NewHub(client *records.Client, defaultName string, logger *zap.Logger) *Hub {
	return &Hub{
		client:      client,
		selections:  client.Namespace(records.NamespaceLanguages),
		defaultName: defaultName,
		logger:      logging.OrNop(logger),
		catalogs:    make(map[string]*Catalog),
	}
}

// DefaultName returns the name of the default catalog.
func (h *Hub) DefaultName() string {
	return h.defaultName
}

// Load writes def as catalog name and registers it. fallback names an
// already loaded catalog, or is empty for none.
func (h *Hub) Load(ctx context.Context, name string, def Definition, fallback string) (*Catalog, error) {
	var fb *Catalog
	if fallback != "" {
		var ok bool
		fb, ok = h.Catalog(fallback)
		if !ok {
			return nil, fmt.Errorf("fallback language %q is not loaded", fallback)
		}
	}

	catalog := NewCatalog(h.client, name, fb)
	if err := catalog.Load(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to load language %q: %w", name, err)
	}

	h.mu.Lock()
	h.catalogs[name] = catalog
	h.mu.Unlock()

	return catalog, nil
}

// LoadFile reads a definition file and loads it as name.
func (h *Hub) LoadFile(ctx context.Context, path, name, fallback string) (*Catalog, error) {
	def, err := ReadDefinition(path)
	if err != nil {
		return nil, err
	}
	return h.Load(ctx, name, def, fallback)
}

// LoadDir loads <dir>/<default>.* first, then every other definition file
// with the default catalog as fallback. Returns the loaded names in load order.
func (h *Hub) LoadDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read languages directory: %w", err)
	}

	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !definitionExtensions[ext] {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		files[name] = filepath.Join(dir, entry.Name())
	}

	defaultPath, ok := files[h.defaultName]
	if !ok {
		return nil, fmt.Errorf("default language %q not found in %s", h.defaultName, dir)
	}
	if _, err := h.LoadFile(ctx, defaultPath, h.defaultName, ""); err != nil {
		return nil, err
	}
	loaded := []string{h.defaultName}

	names := make([]string, 0, len(files))
	for name := range files {
		if name != h.defaultName {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := h.LoadFile(ctx, files[name], name, h.defaultName); err != nil {
			return loaded, err
		}
		loaded = append(loaded, name)
	}

	h.logger.Info("languages_loaded", zap.Strings("languages", loaded))
	return loaded, nil
}

// Catalog returns a loaded catalog by name.
func (h *Hub) Catalog(name string) (*Catalog, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.catalogs[name]
	return c, ok
}

// Default returns the default catalog.
func (h *Hub) Default() (*Catalog, error) {
	c, ok := h.Catalog(h.defaultName)
	if !ok {
		return nil, fmt.Errorf("default language %q is not loaded", h.defaultName)
	}
	return c, nil
}

// ForActor resolves the catalog for a user, optionally within a server.
// Selections naming a catalog that is not loaded are skipped.
func (h *Hub) ForActor(ctx context.Context, userID, serverID string) (*Catalog, error) {
	paths := []string{userID}
	if serverID != "" {
		paths = append(paths, records.Path(serverSelectionPrefix, serverID))
	}

	for _, path := range paths {
		name, ok, err := h.selections.Lookup(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read language selection: %w", err)
		}
		if !ok {
			continue
		}
		if c, loaded := h.Catalog(name); loaded {
			return c, nil
		}
		h.logger.Warn("language_selection_unknown", zap.String("selection", path), zap.String("language", name))
	}

	return h.Default()
}

func selectionPath(id string, server bool) string {
	if server {
		return records.Path(serverSelectionPrefix, id)
	}
	return id
}

// SetLanguage selects a loaded catalog for a user or server.
func (h *Hub) SetLanguage(ctx context.Context, id, name string, server bool) error {
	if _, ok := h.Catalog(name); !ok {
		return fmt.Errorf("language %q is not loaded", name)
	}
	return h.selections.Set(ctx, selectionPath(id, server), name)
}

// ClearLanguage removes a user's or server's selection.
func (h *Hub) ClearLanguage(ctx context.Context, id string, server bool) error {
	return h.selections.Delete(ctx, selectionPath(id, server))
}
