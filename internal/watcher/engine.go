package watcher

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dyluth/steamhub/internal/language"
	"github.com/dyluth/steamhub/internal/logging"
	"github.com/dyluth/steamhub/internal/metrics"
	"github.com/dyluth/steamhub/pkg/records"
)

// DefaultCap is the maximum number of watchers per user when none is configured.
const DefaultCap = 20

// Keys within the watcher namespace.
const (
	nextIDPath   = "next_id"
	ownersPath   = "owners"
	snapshotPath = "snapshot"
	userPrefix   = "user"
	entryPrefix  = "entry"
	namePrefix   = "gamename"
)

// Localizer picks the language catalog for a user.
type Localizer interface {
	ForActor(ctx context.Context, userID, serverID string) (*language.Catalog, error)
}

// Options configures an Engine.
type Options struct {
	Cap                 int     // Max watchers per user (default DefaultCap)
	DeliveriesPerSecond float64 // 0 disables delivery throttling
	Logger              *zap.Logger
	Metrics             *metrics.Metrics
}

// Engine owns the watcher namespace.
//
// Watcher lists are partitioned by owner: each owner has an id array and one
// record per watcher, plus a global owner array walked by the alert cycle.
type Engine struct {
	store     *records.Store
	catalog   Catalog
	transport Transport
	languages Localizer

	cap     int
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a watcher engine.
func NewEngine(client *records.Client, catalog Catalog, transport Transport, languages Localizer, opts Options) *Engine {
	limit := opts.Cap
	if limit <= 0 {
		limit = DefaultCap
	}

	var limiter *rate.Limiter
	if opts.DeliveriesPerSecond > 0 {
		burst := int(opts.DeliveriesPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.DeliveriesPerSecond), burst)
	}

	return &Engine{
		store:     client.Namespace(records.NamespaceWatcher),
		catalog:   catalog,
		transport: transport,
		languages: languages,
		cap:       limit,
		limiter:   limiter,
		logger:    logging.OrNop(opts.Logger),
		metrics:   opts.Metrics,
	}
}

// Cap returns the per-user watcher limit.
func (e *Engine) Cap() int {
	return e.cap
}

func userPath(ownerID string) string {
	return records.Path(userPrefix, ownerID)
}

func entryPath(ownerID string, id int64) string {
	return records.Path(entryPrefix, ownerID, strconv.FormatInt(id, 10))
}

// AddWatcher registers a watcher and returns its new ID.
//
// Returns ErrCapExceeded if the owner already has Cap watchers and
// ErrDuplicate if the owner already watches itemID at destinationID. Neither
// case writes anything. itemName, when non-empty, is stored once per item.
func (e *Engine) AddWatcher(ctx context.Context, ownerID, destinationID string, kind DestinationKind, threshold int, itemID, itemName string) (int64, error) {
	w := Watcher{
		OwnerID:       ownerID,
		DestinationID: destinationID,
		Kind:          kind,
		Threshold:     threshold,
		ItemID:        itemID,
	}
	if err := w.Validate(); err != nil {
		return 0, fmt.Errorf("invalid watcher: %w", err)
	}

	existing, err := e.ListWatchers(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(existing) >= e.cap {
		return 0, ErrCapExceeded
	}
	for _, other := range existing {
		if other.DestinationID == destinationID && other.ItemID == itemID {
			return 0, ErrDuplicate
		}
	}

	id, err := e.allocateID(ctx)
	if err != nil {
		return 0, err
	}
	w.ID = id

	// The record is written before its id is listed so readers never see a
	// listed id without a record.
	if err := watcherCodec.Put(ctx, e.store, entryPath(ownerID, id), w); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(existing)+1)
	for _, other := range existing {
		ids = append(ids, strconv.FormatInt(other.ID, 10))
	}
	ids = append(ids, strconv.FormatInt(id, 10))
	if err := e.store.SetArray(ctx, userPath(ownerID), ids); err != nil {
		return 0, err
	}

	if len(existing) == 0 {
		if err := e.addOwner(ctx, ownerID); err != nil {
			return 0, err
		}
	}

	if itemName != "" {
		exists, err := e.store.Exists(ctx, records.Path(namePrefix, itemID))
		if err != nil {
			return 0, err
		}
		if !exists {
			if err := e.store.Set(ctx, records.Path(namePrefix, itemID), itemName); err != nil {
				return 0, err
			}
		}
	}

	e.logger.Info("watcher_added",
		zap.Int64("watcher_id", id),
		zap.String("owner", ownerID),
		zap.String("destination", destinationID),
		zap.String("kind", string(kind)),
		zap.Int("threshold", threshold),
		zap.String("item", itemID))
	return id, nil
}

// allocateID returns the next global watcher ID. The read and write are not
// atomic; concurrent adds from different shards may race.
func (e *Engine) allocateID(ctx context.Context) (int64, error) {
	raw, err := e.store.GetOr(ctx, nextIDPath, "1")
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &records.DecodeError{Key: nextIDPath, Reason: fmt.Sprintf("invalid watcher id counter %q", raw)}
	}
	if err := e.store.Set(ctx, nextIDPath, strconv.FormatInt(id+1, 10)); err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveWatcher removes the owner's watcher with the given ID. Returns false
// if the owner has no such watcher.
func (e *Engine) RemoveWatcher(ctx context.Context, ownerID string, id int64) (bool, error) {
	ids, err := e.store.GetArray(ctx, userPath(ownerID))
	if err != nil {
		return false, err
	}

	target := strconv.FormatInt(id, 10)
	kept := make([]string, 0, len(ids))
	for _, raw := range ids {
		if raw != target {
			kept = append(kept, raw)
		}
	}
	if len(kept) == len(ids) {
		return false, nil
	}

	if len(kept) == 0 {
		if err := e.store.DeleteArray(ctx, userPath(ownerID)); err != nil {
			return false, err
		}
		if err := e.removeOwner(ctx, ownerID); err != nil {
			return false, err
		}
	} else if err := e.store.SetArray(ctx, userPath(ownerID), kept); err != nil {
		return false, err
	}

	if err := watcherCodec.Remove(ctx, e.store, entryPath(ownerID, id)); err != nil {
		return false, err
	}

	e.logger.Info("watcher_removed", zap.Int64("watcher_id", id), zap.String("owner", ownerID))
	return true, nil
}

// ListWatchers returns the owner's watchers in creation order.
func (e *Engine) ListWatchers(ctx context.Context, ownerID string) ([]Watcher, error) {
	ids, err := e.store.GetArray(ctx, userPath(ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to read watchers for %s: %w", ownerID, err)
	}

	watchers := make([]Watcher, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &records.DecodeError{Key: userPath(ownerID), Reason: fmt.Sprintf("invalid watcher id %q", raw)}
		}
		w, err := watcherCodec.Fetch(ctx, e.store, entryPath(ownerID, id))
		if err != nil {
			if records.IsNotFound(err) {
				return nil, &records.DecodeError{Key: entryPath(ownerID, id), Reason: "listed watcher has no record"}
			}
			return nil, err
		}
		watchers = append(watchers, w)
	}
	return watchers, nil
}

// AllWatchers returns every active watcher of every owner.
func (e *Engine) AllWatchers(ctx context.Context) ([]Watcher, error) {
	owners, err := e.store.GetArray(ctx, ownersPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read watcher owners: %w", err)
	}

	var all []Watcher
	for _, owner := range owners {
		watchers, err := e.ListWatchers(ctx, owner)
		if err != nil {
			return nil, err
		}
		all = append(all, watchers...)
	}
	return all, nil
}

func (e *Engine) addOwner(ctx context.Context, ownerID string) error {
	owners, err := e.store.GetArray(ctx, ownersPath)
	if err != nil {
		return err
	}
	for _, o := range owners {
		if o == ownerID {
			return nil
		}
	}
	return e.store.SetArray(ctx, ownersPath, append(owners, ownerID))
}

func (e *Engine) removeOwner(ctx context.Context, ownerID string) error {
	owners, err := e.store.GetArray(ctx, ownersPath)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(owners))
	for _, o := range owners {
		if o != ownerID {
			kept = append(kept, o)
		}
	}
	return e.store.SetArray(ctx, ownersPath, kept)
}

// ItemName returns the stored display name of an item, or the item ID.
func (e *Engine) ItemName(ctx context.Context, itemID string) (string, error) {
	return e.store.GetOr(ctx, records.Path(namePrefix, itemID), itemID)
}

// Snapshot returns the discount percents observed by the last cycle.
func (e *Engine) Snapshot(ctx context.Context) (map[string]int, error) {
	raw, err := e.store.GetOr(ctx, snapshotPath, "")
	if err != nil {
		return nil, err
	}
	snapshot, err := decodeSnapshot(raw)
	if err != nil {
		return nil, &records.DecodeError{Key: snapshotPath, Reason: err.Error()}
	}
	return snapshot, nil
}

func (e *Engine) setSnapshot(ctx context.Context, snapshot map[string]int) error {
	return e.store.Set(ctx, snapshotPath, encodeSnapshot(snapshot))
}
