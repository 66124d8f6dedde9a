// Package watcher keeps per-user watch lists over catalog items and turns
// discount changes into notifications on each alert cycle.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DestinationKind selects how a notification is routed.
type DestinationKind string

const (
	// KindChannel posts into a channel
	KindChannel DestinationKind = "channel"

	// KindMention posts into a channel and mentions the owner
	KindMention DestinationKind = "mention"

	// KindDirect sends a direct message to a user
	KindDirect DestinationKind = "pm"
)

// Validate checks the kind is one of the known destinations.
func (k DestinationKind) Validate() error {
	switch k {
	case KindChannel, KindMention, KindDirect:
		return nil
	default:
		return fmt.Errorf("invalid destination kind: %s (must be 'channel', 'mention', or 'pm')", k)
	}
}

var (
	// ErrCapExceeded is returned when the owner already has the maximum number of watchers.
	ErrCapExceeded = errors.New("watcher cap reached")

	// ErrDuplicate is returned when the owner already watches the item at the destination.
	ErrDuplicate = errors.New("watcher already exists")
)

// reservedItemSequences cannot appear in item IDs: they delimit snapshot
// entries and key segments.
var reservedItemSequences = []string{snapshotSeparator, snapshotAssign, "::"}

// Watcher is one subscription tying an owner and destination to an item.
type Watcher struct {
	ID            int64
	OwnerID       string
	DestinationID string
	Kind          DestinationKind
	Threshold     int // Minimum discount percent worth a notice
	ItemID        string
}

// Validate checks required fields.
func (w *Watcher) Validate() error {
	if w.OwnerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	if w.DestinationID == "" {
		return fmt.Errorf("destination ID is required")
	}
	if w.ItemID == "" {
		return fmt.Errorf("item ID is required")
	}
	for _, sep := range reservedItemSequences {
		if strings.Contains(w.ItemID, sep) {
			return fmt.Errorf("item ID %q must not contain %q", w.ItemID, sep)
		}
	}
	if w.Threshold < 0 || w.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %d", w.Threshold)
	}
	return w.Kind.Validate()
}

// Catalog is the game catalog service.
type Catalog interface {
	// DiscountPercents returns the current discount percent of each item in
	// one batched lookup. Items the service does not know may be omitted.
	DiscountPercents(ctx context.Context, itemIDs []string) (map[string]int, error)
	// ItemName returns an item's display name.
	ItemName(ctx context.Context, itemID string) (string, error)
}

// Transport delivers rendered notices.
type Transport interface {
	Deliver(ctx context.Context, destinationID string, kind DestinationKind, text string) error
	// ResolveUser returns the direct-message destination for a user.
	ResolveUser(ctx context.Context, userID string) (string, error)
}
