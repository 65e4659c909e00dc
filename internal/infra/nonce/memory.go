package nonce

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
)

type memoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	ttl     time.Duration
	entries map[string]time.Time
}

type MemoryStoreConfig struct {
	Now func() time.Time
	TTL time.Duration
}

func NewMemoryStore(cfg MemoryStoreConfig) domain.NonceStore {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &memoryStore{
		now:     cfg.Now,
		ttl:     cfg.TTL,
		entries: make(map[string]time.Time),
	}
}

func (s *memoryStore) Issue(_ context.Context) (string, error) {
	nonce := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gc()
	s.entries[nonce] = s.now().Add(s.ttl)
	return nonce, nil
}

func (s *memoryStore) Consume(_ context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.entries[nonce]
	if !ok {
		return false, nil
	}
	delete(s.entries, nonce)
	return s.now().Before(expiry), nil
}

// gc drops expired entries; callers hold the lock.
func (s *memoryStore) gc() {
	now := s.now()
	for nonce, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, nonce)
		}
	}
}
