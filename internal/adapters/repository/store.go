// Package repository defines the key-value persistence contract for the
// commission collections and its in-memory implementation.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Collection keys.
const (
	KeyRules       = "rules"
	KeyCommissions = "commissions"
	KeyAudit       = "audit"
)

// Batch maps collection keys to full collection snapshots. A batch is
// written atomically: every key is stored or none is.
type Batch map[string]any

// Keys returns the batch keys in a stable order.
func (b Batch) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store loads and saves whole named collections.
type Store interface {
	// Load decodes the collection stored under key into dst. It returns
	// false, and leaves dst untouched, when nothing is stored under key.
	Load(ctx context.Context, key string, dst any) (bool, error)

	// Save atomically replaces every collection in batch.
	Save(ctx context.Context, batch Batch) error
}

// LoadOrDefault loads the collection under key, falling back to def when it
// has never been saved.
func LoadOrDefault[T any](ctx context.Context, s Store, key string, def []T) ([]T, error) {
	var out []T
	found, err := s.Load(ctx, key, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return def, nil
	}
	return out, nil
}

// Encode serializes every collection of batch. Backends share it so the
// stored format is the same everywhere.
func Encode(batch Batch) (map[string][]byte, error) {
	out := make(map[string][]byte, len(batch))
	for _, k := range batch.Keys() {
		b, err := json.Marshal(batch[k])
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s: %w", ErrPersist, k, err)
		}
		out[k] = b
	}
	return out, nil
}

// Decode deserializes a stored collection.
func Decode(key string, data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrPersist, key, err)
	}
	return nil
}
