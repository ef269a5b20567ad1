// Package vfs is the namespaced, TTL-aware key/value store that holds live
// sessions, site definitions and generator caches.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by backends for a missing or expired key
	ErrNotFound = errors.New("vfs: key not found")
	// ErrStorageUnavailable wraps every backend failure
	ErrStorageUnavailable = errors.New("vfs: storage unavailable")
)

// Backend is a TTL key/value store
type Backend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// Expire resets the TTL of an existing key; false when the key is absent
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// ScanPrefix returns at most limit keys starting with prefix
	ScanPrefix(ctx context.Context, prefix string, limit int) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
