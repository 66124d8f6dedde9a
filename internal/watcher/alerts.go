package watcher

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/dyluth/steamhub/pkg/records"
)

// Transition is the kind of discount change a notification reports.
type Transition string

const (
	TransitionNone      Transition = ""
	TransitionStarted   Transition = "deal_started"
	TransitionIncreased Transition = "deal_increased"
	TransitionReduced   Transition = "deal_reduced"
	TransitionEnded     Transition = "deal_ended"
)

// Classify decides which notice, if any, a watcher with threshold t gets when
// an item's discount moves from old to cur.
//
// Growth is checked before decline. An unchanged percent never produces a
// notice, so a steady discount is reported once. A decline is only reported
// when the previous percent had reached the threshold.
func Classify(old, cur, threshold int) Transition {
	switch {
	case cur > old:
		if cur < threshold {
			return TransitionNone
		}
		if old == 0 {
			return TransitionStarted
		}
		return TransitionIncreased
	case cur == old:
		return TransitionNone
	default:
		if old < threshold {
			return TransitionNone
		}
		if cur > 0 && cur >= threshold {
			return TransitionReduced
		}
		return TransitionEnded
	}
}

// Notification is one notice produced by an alert cycle.
type Notification struct {
	Watcher    Watcher
	Transition Transition
	Old        int
	New        int
	Text       string
	Delivered  bool
}

// CheckWatchers runs one alert cycle.
//
// Current discounts for every watched item are fetched in a single catalog
// call; overrides replace individual results and are mainly useful for
// testing. If the catalog call fails the cycle aborts and the stored snapshot
// is left untouched. Rendering and delivery failures are logged per notice
// and do not stop the cycle.
func (e *Engine) CheckWatchers(ctx context.Context, overrides map[string]int) ([]Notification, error) {
	previous, err := e.Snapshot(ctx)
	if err != nil {
		e.metrics.WatcherCycle("aborted", 0)
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	watchers, err := e.AllWatchers(ctx)
	if err != nil {
		e.metrics.WatcherCycle("aborted", 0)
		return nil, err
	}

	items := distinctItems(watchers)
	current := make(map[string]int, len(items))
	if len(items) > 0 {
		fetched, err := e.catalog.DiscountPercents(ctx, items)
		if err != nil {
			e.metrics.WatcherCycle("aborted", len(watchers))
			e.logger.Warn("watcher_cycle_aborted", zap.Int("items", len(items)), zap.Error(err))
			return nil, fmt.Errorf("catalog lookup failed: %w", err)
		}
		for item, percent := range fetched {
			current[item] = percent
		}
	}
	for item, percent := range overrides {
		current[item] = percent
	}

	// Items the catalog did not report keep their previous percent.
	next := make(map[string]int, len(items))
	for _, item := range items {
		if percent, ok := current[item]; ok {
			next[item] = percent
		} else {
			next[item] = previous[item]
		}
	}

	var notifications []Notification
	names := make(map[string]string)
	for _, w := range watchers {
		old, now := previous[w.ItemID], next[w.ItemID]
		transition := Classify(old, now, w.Threshold)
		if transition == TransitionNone {
			continue
		}

		n := Notification{Watcher: w, Transition: transition, Old: old, New: now}

		name, ok := names[w.ItemID]
		if !ok {
			name = e.resolveItemName(ctx, w.ItemID)
			names[w.ItemID] = name
		}

		text, err := e.render(ctx, w, transition, name, old, now)
		if err != nil {
			e.logger.Error("watcher_render_failed", zap.Int64("watcher_id", w.ID), zap.Error(err))
			e.metrics.Notification(string(transition), "failed")
			notifications = append(notifications, n)
			continue
		}
		n.Text = text

		if err := e.deliver(ctx, w, text); err != nil {
			e.logger.Error("watcher_delivery_failed",
				zap.Int64("watcher_id", w.ID),
				zap.String("destination", w.DestinationID),
				zap.Error(err))
			e.metrics.Notification(string(transition), "failed")
		} else {
			n.Delivered = true
			e.metrics.Notification(string(transition), "delivered")
		}
		notifications = append(notifications, n)
	}

	if err := e.setSnapshot(ctx, next); err != nil {
		e.metrics.WatcherCycle("aborted", len(watchers))
		return notifications, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	e.metrics.WatcherCycle("ok", len(watchers))
	e.logger.Info("watcher_cycle_complete",
		zap.Int("watchers", len(watchers)),
		zap.Int("items", len(items)),
		zap.Int("notifications", len(notifications)))
	return notifications, nil
}

func distinctItems(watchers []Watcher) []string {
	seen := make(map[string]bool)
	var items []string
	for _, w := range watchers {
		if !seen[w.ItemID] {
			seen[w.ItemID] = true
			items = append(items, w.ItemID)
		}
	}
	sort.Strings(items)
	return items
}

// resolveItemName prefers the stored name, then asks the catalog and stores
// its answer, and finally falls back to the item ID.
func (e *Engine) resolveItemName(ctx context.Context, itemID string) string {
	path := records.Path(namePrefix, itemID)
	name, ok, err := e.store.Lookup(ctx, path)
	if err == nil && ok {
		return name
	}

	name, err = e.catalog.ItemName(ctx, itemID)
	if err != nil || name == "" {
		e.logger.Warn("watcher_item_name_unresolved", zap.String("item", itemID), zap.Error(err))
		return itemID
	}
	if err := e.store.Set(ctx, path, name); err != nil {
		e.logger.Warn("watcher_item_name_not_saved", zap.String("item", itemID), zap.Error(err))
	}
	return name
}

func formatPercent(n int) string {
	return strconv.Itoa(n) + "%"
}

// render builds the notice text in the owner's language.
func (e *Engine) render(ctx context.Context, w Watcher, transition Transition, name string, old, now int) (string, error) {
	catalog, err := e.languages.ForActor(ctx, w.OwnerID, "")
	if err != nil {
		return "", err
	}
	format, err := catalog.Message(ctx, string(transition))
	if err != nil {
		return "", err
	}

	var line string
	switch transition {
	case TransitionStarted:
		line = fmt.Sprintf(format, name, formatPercent(now))
	case TransitionEnded:
		line = fmt.Sprintf(format, name, strconv.Itoa(old))
	default:
		line = fmt.Sprintf(format, name, formatPercent(old), formatPercent(now))
	}

	line = "[" + strconv.FormatInt(w.ID, 10) + "]:  " + line
	if w.Kind == KindMention {
		line += "  <@" + w.OwnerID + ">"
	}
	return line, nil
}

func (e *Engine) deliver(ctx context.Context, w Watcher, text string) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	destination := w.DestinationID
	if w.Kind == KindDirect {
		resolved, err := e.transport.ResolveUser(ctx, w.DestinationID)
		if err != nil {
			return fmt.Errorf("failed to resolve user %s: %w", w.DestinationID, err)
		}
		destination = resolved
	}
	return e.transport.Deliver(ctx, destination, w.Kind, text)
}
