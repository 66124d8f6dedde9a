package query

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Diagnostic computes one shard's answer to a named query.
type Diagnostic func(ctx context.Context) (string, error)

// Registry is the closed set of queries a shard will answer. Query text
// received from the store is only ever used as a lookup key here.
type Registry struct {
	mu          sync.RWMutex
	diagnostics map[string]Diagnostic
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{diagnostics: make(map[string]Diagnostic)}
}

// Register adds or replaces a diagnostic.
func (r *Registry) Register(name string, d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics[name] = d
}

// Lookup returns the diagnostic registered under name.
func (r *Registry) Lookup(name string) (Diagnostic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.diagnostics[name]
	return d, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.diagnostics))
	for name := range r.diagnostics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ShardInfo feeds the built-in diagnostics.
type ShardInfo struct {
	ID        int
	Count     int
	Version   string
	StartedAt time.Time

	// WatcherCount reports active watchers; the "watchers" diagnostic is
	// omitted when nil.
	WatcherCount func(ctx context.Context) (int, error)
}

// Builtins returns a registry with the standard diagnostics:
// shard, uptime, goroutines, memory, version and watchers.
func Builtins(info ShardInfo) *Registry {
	r := NewRegistry()

	r.Register("shard", func(ctx context.Context) (string, error) {
		return fmt.Sprintf("%d/%d", info.ID, info.Count), nil
	})
	r.Register("uptime", func(ctx context.Context) (string, error) {
		return time.Since(info.StartedAt).Round(time.Second).String(), nil
	})
	r.Register("goroutines", func(ctx context.Context) (string, error) {
		return strconv.Itoa(runtime.NumGoroutine()), nil
	})
	r.Register("memory", func(ctx context.Context) (string, error) {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		return fmt.Sprintf("alloc=%dKiB sys=%dKiB gc=%d", stats.Alloc/1024, stats.Sys/1024, stats.NumGC), nil
	})
	r.Register("version", func(ctx context.Context) (string, error) {
		return info.Version, nil
	})
	if info.WatcherCount != nil {
		r.Register("watchers", func(ctx context.Context) (string, error) {
			n, err := info.WatcherCount(ctx)
			if err != nil {
				return "", err
			}
			return strconv.Itoa(n), nil
		})
	}

	return r
}
