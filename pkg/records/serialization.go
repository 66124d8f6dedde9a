package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Serialization helpers for converting between Go structs and flat fields.
//
// Records are stored as one scalar per field; small collections that are
// always replaced wholesale (ban lists, premium users, snapshots) are packed
// into a single scalar with a separator instead of an array.

// ErrCorrupt marks stored data that violates the layout written by this package.
var ErrCorrupt = errors.New("corrupt record")

// DecodeError reports a record or array that could not be decoded.
type DecodeError struct {
	Key    string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("corrupt record at %s: %s", e.Key, e.Reason)
}

// Unwrap lets errors.Is(err, ErrCorrupt) match.
func (e *DecodeError) Unwrap() error {
	return ErrCorrupt
}

// FieldCodec converts a value of type T to and from its field map.
type FieldCodec[T any] struct {
	Fields []string
	Encode func(T) (map[string]string, error)
	Decode func(map[string]string) (T, error)
}

// Put encodes v and writes it as a record at path.
func (fc FieldCodec[T]) Put(ctx context.Context, s *Store, path string, v T) error {
	fields, err := fc.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", path, err)
	}
	return s.SetRecord(ctx, path, fields)
}

// Fetch reads the record at path and decodes it.
// Returns redis.Nil if the record does not exist.
func (fc FieldCodec[T]) Fetch(ctx context.Context, s *Store, path string) (T, error) {
	var zero T
	fields, err := s.GetRecord(ctx, path, fc.Fields)
	if err != nil {
		return zero, err
	}
	v, err := fc.Decode(fields)
	if err != nil {
		return zero, &DecodeError{Key: s.key(path), Reason: err.Error()}
	}
	return v, nil
}

// Remove deletes every field of the record at path.
func (fc FieldCodec[T]) Remove(ctx context.Context, s *Store, path string) error {
	return s.DeleteRecord(ctx, path, fc.Fields)
}

// SplitList splits a packed scalar, dropping empty entries.
func SplitList(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList packs entries into one scalar.
func JoinList(values []string, sep string) string {
	return strings.Join(values, sep)
}
