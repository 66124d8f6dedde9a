package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client owns the Redis connection shared by every namespace Store.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new record store client.
func NewClient(redisOpts *redis.Options) *Client {
	return &Client{rdb: redis.NewClient(redisOpts)}
}

// NewClientFromURL parses a redis:// URL and creates a client for it.
func NewClientFromURL(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewClient(opts), nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Namespace returns a Store scoped to one logical table.
func (c *Client) Namespace(name string) *Store {
	return &Store{rdb: c.rdb, namespace: name}
}

// Publish sends a payload to every subscriber of channel.
func (c *Client) Publish(ctx context.Context, channel, payload string) error {
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Store is a namespace-scoped view over the flat keyspace. It is the only
// type that builds composite keys.
type Store struct {
	rdb       *redis.Client
	namespace string
}

// Namespace returns the namespace this store writes under.
func (s *Store) Namespace() string {
	return s.namespace
}

func (s *Store) key(path string) string {
	return s.namespace + Separator + path
}

// Set writes a scalar field, creating or overwriting it.
func (s *Store) Set(ctx context.Context, path, value string) error {
	if err := s.rdb.Set(ctx, s.key(path), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.key(path), err)
	}
	return nil
}

// Get reads a scalar field.
// Returns ("", redis.Nil) if the field is unset. Use IsNotFound() to check.
func (s *Store) Get(ctx context.Context, path string) (string, error) {
	value, err := s.rdb.Get(ctx, s.key(path)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to read %s: %w", s.key(path), err)
	}
	return value, nil
}

// Lookup reads a scalar field and reports whether it was set. An empty
// string that was explicitly written is returned with ok=true.
func (s *Store) Lookup(ctx context.Context, path string) (value string, ok bool, err error) {
	value, err = s.Get(ctx, path)
	if err != nil {
		if IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// GetOr reads a scalar field, returning def when it is unset.
func (s *Store) GetOr(ctx context.Context, path, def string) (string, error) {
	value, ok, err := s.Lookup(ctx, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// Exists reports whether a scalar field is set.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(path)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", s.key(path), err)
	}
	return n > 0, nil
}

// Delete removes a scalar field. Deleting an unset field is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := s.rdb.Del(ctx, s.key(path)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.key(path), err)
	}
	return nil
}

// SetArray rewrites a whole array: the length first, then every index.
// Indices left over from a longer previous array are deleted afterwards.
func (s *Store) SetArray(ctx context.Context, path string, values []string) error {
	previous, err := s.arrayLength(ctx, path)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}

	if err := s.Set(ctx, lengthPath(path), strconv.Itoa(len(values))); err != nil {
		return err
	}
	for i, value := range values {
		if err := s.Set(ctx, Path(path, strconv.Itoa(i)), value); err != nil {
			return err
		}
	}
	for i := len(values); i < previous; i++ {
		if err := s.Delete(ctx, Path(path, strconv.Itoa(i))); err != nil {
			return err
		}
	}
	return nil
}

// GetArray reads an array written by SetArray.
// Returns an empty slice if the length field is unset. Returns a DecodeError
// wrapping ErrCorrupt if the length is malformed or an index below it is missing.
func (s *Store) GetArray(ctx context.Context, path string) ([]string, error) {
	length, err := s.arrayLength(ctx, path)
	if err != nil {
		return nil, err
	}

	values := make([]string, length)
	for i := 0; i < length; i++ {
		value, ok, err := s.Lookup(ctx, Path(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &DecodeError{
				Key:    s.key(path),
				Reason: fmt.Sprintf("index %d missing (length %d)", i, length),
			}
		}
		values[i] = value
	}
	return values, nil
}

// ArrayExists reports whether an array has a length field.
func (s *Store) ArrayExists(ctx context.Context, path string) (bool, error) {
	return s.Exists(ctx, lengthPath(path))
}

// DeleteArray removes the length field and every index below it.
func (s *Store) DeleteArray(ctx context.Context, path string) error {
	length, err := s.arrayLength(ctx, path)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	if err := s.Delete(ctx, lengthPath(path)); err != nil {
		return err
	}
	for i := 0; i < length; i++ {
		if err := s.Delete(ctx, Path(path, strconv.Itoa(i))); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) arrayLength(ctx context.Context, path string) (int, error) {
	raw, ok, err := s.Lookup(ctx, lengthPath(path))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	length, err := strconv.Atoi(raw)
	if err != nil || length < 0 {
		return 0, &DecodeError{Key: s.key(lengthPath(path)), Reason: fmt.Sprintf("invalid length %q", raw)}
	}
	return length, nil
}

// SetRecord writes each field of a record under <path>::<field>.
func (s *Store) SetRecord(ctx context.Context, path string, fields map[string]string) error {
	for name, value := range fields {
		if err := s.Set(ctx, Path(path, name), value); err != nil {
			return err
		}
	}
	return nil
}

// GetRecord reads the named fields of a record.
// Returns (nil, redis.Nil) if none of the fields exist, and a DecodeError if
// only some of them do.
func (s *Store) GetRecord(ctx context.Context, path string, names []string) (map[string]string, error) {
	fields := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		value, ok, err := s.Lookup(ctx, Path(path, name))
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, name)
			continue
		}
		fields[name] = value
	}

	if len(fields) == 0 && len(names) > 0 {
		return nil, redis.Nil
	}
	if len(missing) > 0 {
		return nil, &DecodeError{Key: s.key(path), Reason: fmt.Sprintf("fields missing: %v", missing)}
	}
	return fields, nil
}

// DeleteRecord removes the named fields of a record.
func (s *Store) DeleteRecord(ctx context.Context, path string, names []string) error {
	for _, name := range names {
		if err := s.Delete(ctx, Path(path, name)); err != nil {
			return err
		}
	}
	return nil
}

// Message is a single broadcast received on a Subscription.
type Message struct {
	Channel string
	Payload string
}

// Subscription represents an active Pub/Sub subscription.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	messages <-chan Message
	cancel   func()
	once     sync.Once
}

// Messages returns the channel of received broadcasts.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Messages() <-chan Message {
	return s.messages
}

// Close stops the subscription. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe listens for broadcasts on channel. The subscription is confirmed
// by Redis before Subscribe returns, so a Publish issued afterwards is seen.
//
// Broadcasts are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a subscriber that is not connected misses the message.
func (c *Client) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	messages := make(chan Message, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(messages)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case messages <- Message{Channel: msg.Channel, Payload: msg.Payload}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{messages: messages, cancel: cancel}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
