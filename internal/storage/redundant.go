package storage

import (
	"context"
	"errors"
	"log"
)

// RedundantStore mirrors every write into three slots — primary persistent,
// backup persistent, ephemeral — so that identity state survives partial
// storage clearing. A read succeeds if any slot still holds the key, and
// read-repair writes the recovered value back into all three.
type RedundantStore struct {
	primary   KeyValue
	backup    KeyValue
	ephemeral KeyValue
}

// NewRedundantStore composes the three slots. Backup may be nil when no
// backup driver is configured; reads and writes then span the remaining two.
func NewRedundantStore(primary, backup, ephemeral KeyValue) *RedundantStore {
	return &RedundantStore{primary: primary, backup: backup, ephemeral: ephemeral}
}

func (r *RedundantStore) slots() []KeyValue {
	slots := []KeyValue{r.primary}
	if r.backup != nil {
		slots = append(slots, r.backup)
	}
	slots = append(slots, r.ephemeral)
	return slots
}

// Get returns the value from the first slot that holds the key, repairing
// the other slots with the recovered value.
func (r *RedundantStore) Get(ctx context.Context, key string) (string, error) {
	slots := r.slots()
	for i, slot := range slots {
		value, err := slot.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			log.Printf("redundant store: slot %d read failed for %s: %v", i, key, err)
			continue
		}
		r.repair(ctx, key, value, i, slots)
		return value, nil
	}
	return "", ErrNotFound
}

// repair rewrites the recovered value into every slot other than the source.
func (r *RedundantStore) repair(ctx context.Context, key, value string, source int, slots []KeyValue) {
	for i, slot := range slots {
		if i == source {
			continue
		}
		if err := slot.Set(ctx, key, value); err != nil {
			log.Printf("redundant store: read-repair of %s into slot %d failed: %v", key, i, err)
		}
	}
}

// Set writes to every slot. Writes are idempotent and last-write-wins; a
// single failing slot is logged, not fatal, as long as one write lands.
func (r *RedundantStore) Set(ctx context.Context, key, value string) error {
	var firstErr error
	wrote := false
	for i, slot := range r.slots() {
		if err := slot.Set(ctx, key, value); err != nil {
			log.Printf("redundant store: slot %d write failed for %s: %v", i, key, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		wrote = true
	}
	if wrote {
		return nil
	}
	return firstErr
}

// Delete removes the key from every slot.
func (r *RedundantStore) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, slot := range r.slots() {
		if err := slot.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeletePrefix purges the prefix from every slot.
func (r *RedundantStore) DeletePrefix(ctx context.Context, prefix string) error {
	var firstErr error
	for _, slot := range r.slots() {
		if err := slot.DeletePrefix(ctx, prefix); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Keys returns the union of keys across all slots.
func (r *RedundantStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	seen := map[string]bool{}
	var keys []string
	for _, slot := range r.slots() {
		slotKeys, err := slot.Keys(ctx, prefix)
		if err != nil {
			continue
		}
		for _, k := range slotKeys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

// Close closes every slot.
func (r *RedundantStore) Close() error {
	var firstErr error
	for _, slot := range r.slots() {
		if err := slot.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
