// Package kv defines the small key-value persistence contract used for
// favorites and conversation history, and a typed JSON view over it.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store persists opaque values by key. Implementations must be safe for
// concurrent use. A missing key is reported by ok=false, not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Typed reads and writes one key as JSON-encoded T.
type Typed[T any] struct {
	store Store
	key   string
}

// NewTyped binds key in store to values of type T.
func NewTyped[T any](store Store, key string) *Typed[T] {
	return &Typed[T]{store: store, key: key}
}

// Key returns the bound key.
func (t *Typed[T]) Key() string { return t.key }

// Get loads and decodes the value. A missing key yields the zero value and
// ok=false. A value that no longer decodes as T is a *DecodeError.
func (t *Typed[T]) Get(ctx context.Context) (T, bool, error) {
	var zero T
	raw, ok, err := t.store.Get(ctx, t.key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, &DecodeError{Key: t.key, Err: err}
	}
	return v, true, nil
}

// Set encodes and stores v.
func (t *Typed[T]) Set(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.key, err)
	}
	return t.store.Set(ctx, t.key, raw)
}

// Remove deletes the key.
func (t *Typed[T]) Remove(ctx context.Context) error {
	return t.store.Remove(ctx, t.key)
}

// DecodeError reports a stored value that is not valid JSON for its type.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Key, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }
