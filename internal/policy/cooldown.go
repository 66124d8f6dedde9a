package policy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/steamhub/internal/timespec"
	"github.com/dyluth/steamhub/pkg/records"
)

func cooldownPath(userID, name string) string {
	return records.Path(userID, name)
}

// CooldownDuration returns the configured cooldown for a command name.
func (r *Resolver) CooldownDuration(name string) (time.Duration, bool) {
	d, ok := r.durations[name]
	return d, ok
}

// CheckCooldown fails with *CooldownError if userID started a cooldown for
// name that has not yet expired. Exempt users always pass.
//
// template may contain %t (remaining seconds) and %cd (configured seconds).
func (r *Resolver) CheckCooldown(ctx context.Context, userID, name, template string) error {
	if r.exempt[userID] {
		return nil
	}

	raw, ok, err := r.cooldowns.Lookup(ctx, cooldownPath(userID, name))
	if err != nil {
		return fmt.Errorf("failed to read cooldown: %w", err)
	}
	if !ok {
		return nil
	}

	expiresMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return &records.DecodeError{Key: cooldownPath(userID, name), Reason: fmt.Sprintf("invalid expiry %q", raw)}
	}

	remaining := time.UnixMilli(expiresMs).Sub(r.now())
	if remaining <= 0 {
		// Expired entries are dropped lazily.
		if err := r.cooldowns.Delete(ctx, cooldownPath(userID, name)); err != nil {
			r.logger.Warn("cooldown_cleanup_failed", zap.String("user", userID), zap.String("name", name), zap.Error(err))
		}
		return nil
	}

	message := ""
	if template != "" {
		configured, _ := r.CooldownDuration(name)
		message = strings.NewReplacer(
			"%t", timespec.Seconds(remaining),
			"%cd", timespec.Seconds(configured),
		).Replace(template)
	}
	return &CooldownError{Name: name, Remaining: remaining, Message: message}
}

// StartCooldown records expiry = now + configured duration for (userID, name).
// Names without a configured duration are not tracked.
func (r *Resolver) StartCooldown(ctx context.Context, userID, name string) error {
	d, ok := r.durations[name]
	if !ok || d <= 0 {
		return nil
	}
	expires := r.now().Add(d).UnixMilli()
	if err := r.cooldowns.Set(ctx, cooldownPath(userID, name), strconv.FormatInt(expires, 10)); err != nil {
		return fmt.Errorf("failed to start cooldown: %w", err)
	}
	return nil
}

// ClearCooldown removes any cooldown for (userID, name).
func (r *Resolver) ClearCooldown(ctx context.Context, userID, name string) error {
	return r.cooldowns.Delete(ctx, cooldownPath(userID, name))
}

// CooldownTracker remembers the cooldown a single command invocation
// started so it can be refunded if the command fails.
type CooldownTracker struct {
	resolver *Resolver

	mu     sync.Mutex
	userID string
	name   string
}

// NewCooldownTracker returns a tracker for one invocation.
func (r *Resolver) NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{resolver: r}
}

// Check is CheckCooldown.
func (t *CooldownTracker) Check(ctx context.Context, userID, name, template string) error {
	return t.resolver.CheckCooldown(ctx, userID, name, template)
}

// Start starts the cooldown and remembers it for Reset.
func (t *CooldownTracker) Start(ctx context.Context, userID, name string) error {
	t.mu.Lock()
	t.userID, t.name = userID, name
	t.mu.Unlock()
	return t.resolver.StartCooldown(ctx, userID, name)
}

// Reset clears the most recently started cooldown. A tracker that never
// started one does nothing.
func (t *CooldownTracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	userID, name := t.userID, t.name
	t.mu.Unlock()

	if userID == "" && name == "" {
		return nil
	}
	return t.resolver.ClearCooldown(ctx, userID, name)
}
