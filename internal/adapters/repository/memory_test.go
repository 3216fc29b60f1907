package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type row struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var out []row
	found, err := store.Load(ctx, KeyRules, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected missing key to report not found")
	}

	def := []row{{ID: "default"}}
	got, err := LoadOrDefault(ctx, store, KeyRules, def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "default" {
		t.Errorf("expected default collection, got %+v", got)
	}
}

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rules := []row{{ID: "r1", Value: 1}}
	audit := []row{{ID: "a1", Value: 2}, {ID: "a2", Value: 3}}
	if err := store.Save(ctx, Batch{KeyRules: rules, KeyAudit: audit}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mutating the caller's slice must not leak into the store.
	rules[0].Value = 99

	got, err := LoadOrDefault[row](ctx, store, KeyRules, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Value != 1 {
		t.Errorf("expected stored value 1, got %+v", got)
	}

	gotAudit, err := LoadOrDefault[row](ctx, store, KeyAudit, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotAudit) != 2 {
		t.Errorf("expected 2 audit rows, got %d", len(gotAudit))
	}
}

func TestMemoryStore_SaveIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Save(ctx, Batch{
		KeyRules: []row{{ID: "r1"}},
		KeyAudit: make(chan int), // cannot be encoded
	})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if _, ok := store.Raw(KeyRules); ok {
		t.Error("expected no key to be written when the batch fails")
	}
}

func TestMemoryStore_Seed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithSeed(map[string][]byte{KeyRules: []byte(`[{"id":"seeded","value":7}]`)}))

	got, err := LoadOrDefault[row](ctx, store, KeyRules, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "seeded" {
		t.Errorf("expected seeded row, got %+v", got)
	}
}

func TestMemoryStore_CorruptData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithSeed(map[string][]byte{KeyRules: []byte(`{not json`)}))

	var out []row
	if _, err := store.Load(ctx, KeyRules, &out); !errors.Is(err, ErrPersist) {
		t.Errorf("expected ErrPersist, got %v", err)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Close()

	if err := store.Save(ctx, Batch{KeyRules: []row{}}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on save, got %v", err)
	}
	var out []row
	if _, err := store.Load(ctx, KeyRules, &out); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on load, got %v", err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewMemoryStore()

	if err := store.Save(ctx, Batch{KeyRules: []row{}}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Save(ctx, Batch{KeyCommissions: []row{{ID: "c", Value: i}}})
			var out []row
			_, _ = store.Load(ctx, KeyCommissions, &out)
		}(i)
	}
	wg.Wait()

	got, err := LoadOrDefault[row](ctx, store, KeyCommissions, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected a single row, got %d", len(got))
	}
}
