package nonce

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSingleUse(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{})
	ctx := context.Background()

	nonce, err := store.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if nonce == "" {
		t.Fatalf("empty nonce")
	}

	ok, err := store.Consume(ctx, nonce)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !ok {
		t.Fatalf("fresh nonce rejected")
	}

	ok, err = store.Consume(ctx, nonce)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if ok {
		t.Fatalf("nonce consumed twice")
	}
}

func TestMemoryStoreUnknownNonce(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{})
	for _, nonce := range []string{"", "never-issued"} {
		ok, err := store.Consume(context.Background(), nonce)
		if err != nil {
			t.Fatalf("Consume(%q): %v", nonce, err)
		}
		if ok {
			t.Fatalf("Consume(%q) accepted", nonce)
		}
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	current := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(MemoryStoreConfig{
		Now: func() time.Time { return current },
		TTL: time.Minute,
	})
	ctx := context.Background()

	nonce, err := store.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	current = current.Add(2 * time.Minute)
	ok, err := store.Consume(ctx, nonce)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if ok {
		t.Fatalf("expired nonce accepted")
	}
}

func TestMemoryStoreIssueIsUnique(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{})
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		nonce, err := store.Issue(context.Background())
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[nonce] {
			t.Fatalf("duplicate nonce %s", nonce)
		}
		seen[nonce] = true
	}
}
