// Package transport holds the notice transports a shard can deliver through
// when no chat platform is attached.
package transport

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dyluth/steamhub/internal/language"
	"github.com/dyluth/steamhub/internal/logging"
	"github.com/dyluth/steamhub/internal/watcher"
)

// Log writes every notice to a zap logger.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log transport.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logging.OrNop(logger)}
}

// Deliver logs the notice. Texts carrying the error marker are logged at
// warn level with the marker stripped.
func (l *Log) Deliver(ctx context.Context, destinationID string, kind watcher.DestinationKind, text string) error {
	fields := []zap.Field{
		zap.String("destination", destinationID),
		zap.String("kind", string(kind)),
	}
	if quiet, ok := strings.CutPrefix(text, language.ErrorMarker); ok {
		l.logger.Warn("notice_delivered", append(fields, zap.String("text", quiet))...)
		return nil
	}
	l.logger.Info("notice_delivered", append(fields, zap.String("text", text))...)
	return nil
}

// ResolveUser returns the user ID unchanged; direct messages are addressed
// by user.
func (l *Log) ResolveUser(ctx context.Context, userID string) (string, error) {
	return userID, nil
}
