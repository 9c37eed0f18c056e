package storage

import (
	"context"
	"errors"
	"sync"
)

// Common errors for key-value operations.
var (
	ErrNotFound      = errors.New("key not found")
	ErrInvalidConfig = errors.New("invalid storage configuration")
)

// KeyValue is the persistence contract the engine writes through. It models
// the browser's local storage: flat string keys, string values, last-write-
// wins. Drivers exist for memory (ephemeral), JSON file (local persistent),
// Redis (backup persistent) and Postgres (server persistent).
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key under the prefix. Used to purge
	// session-scoped state on logout and new-inquiry.
	DeletePrefix(ctx context.Context, prefix string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

var (
	storeInstance KeyValue
	storeMu       sync.RWMutex
)

// SetStore sets the global store instance (call from main.go).
func SetStore(s KeyValue) {
	storeMu.Lock()
	defer storeMu.Unlock()
	storeInstance = s
}

// GetStore returns the global store instance.
func GetStore() KeyValue {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return storeInstance
}
