package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/commission/pkg/metrics"
)

const backendMemory = "memory"

// MemoryStore keeps encoded collections in process memory. Values are
// stored encoded so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty store, optionally pre-seeded.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{data: make(map[string][]byte)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, key string, dst any) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(backendMemory, "load", float64(time.Since(start).Milliseconds()))
	}()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	data, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if err := Decode(key, data, dst); err != nil {
		metrics.RecordErrorByComponent("repository", "decode")
		return false, err
	}
	return true, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, batch Batch) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency(backendMemory, "save", float64(time.Since(start).Milliseconds()))
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := Encode(batch)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "encode")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for k, v := range encoded {
		s.data[k] = v
	}
	return nil
}

// Raw returns a copy of the encoded collection under key.
func (s *MemoryStore) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[key]
	return slices.Clone(b), ok
}

// Close releases the store; later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
