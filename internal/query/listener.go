package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dyluth/steamhub/pkg/records"
)

const announcementSeparator = "|"

// encodeAnnouncement builds the broadcast payload "<job>|<origin shard>".
func encodeAnnouncement(job string, origin int) string {
	return job + announcementSeparator + strconv.Itoa(origin)
}

func decodeAnnouncement(payload string) (job string, origin int, err error) {
	job, rawOrigin, ok := strings.Cut(payload, announcementSeparator)
	if !ok || job == "" {
		return "", 0, fmt.Errorf("malformed query announcement %q", payload)
	}
	origin, err = strconv.Atoi(rawOrigin)
	if err != nil {
		return "", 0, fmt.Errorf("malformed query announcement %q: %w", payload, err)
	}
	return job, origin, nil
}

// Listener answers query broadcasts on behalf of one shard.
type Listener struct {
	coordinator  *Coordinator
	subscription *records.Subscription
}

// Listen subscribes to query broadcasts. The subscription is live when Listen
// returns; call Run to start answering and Close when done.
func (c *Coordinator) Listen(ctx context.Context) (*Listener, error) {
	sub, err := c.client.Subscribe(ctx, BroadcastChannel())
	if err != nil {
		return nil, err
	}
	return &Listener{coordinator: c, subscription: sub}, nil
}

// Run answers broadcasts until ctx is cancelled or the subscription closes.
// Failures to answer a single broadcast are logged and do not stop the loop.
func (l *Listener) Run(ctx context.Context) error {
	c := l.coordinator
	c.logger.Info("query_listener_started", zap.Int("shard", c.shardID), zap.String("channel", BroadcastChannel()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-l.subscription.Messages():
			if !ok {
				return nil
			}
			job, origin, err := decodeAnnouncement(msg.Payload)
			if err != nil {
				c.logger.Warn("query_announcement_invalid", zap.Error(err))
				continue
			}
			if origin == c.shardID {
				continue
			}
			if err := c.Respond(ctx, ""); err != nil {
				c.logger.Error("query_respond_failed", zap.String("job", job), zap.Error(err))
				continue
			}
			c.logger.Info("query_answered", zap.String("job", job), zap.Int("origin", origin), zap.Int("shard", c.shardID))
		}
	}
}

// Close ends the subscription.
func (l *Listener) Close() error {
	return l.subscription.Close()
}
