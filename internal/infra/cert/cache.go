package cert

import "sync"

// Cache holds the most recently built certificate under a caller-supplied
// key. The key must identify both the subject name and the signing key, so a
// different signer never sees another signer's certificate. A change of key
// invalidates the entry; reads after population are cheap and the
// check-populate-use sequence is lock-protected.
type Cache struct {
	mu  sync.Mutex
	key string
	der []byte
}

// Certificate returns the cached DER for key, building and storing it via
// build on a miss.
func (c *Cache) Certificate(key string, build func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.der != nil && c.key == key {
		return c.der, nil
	}
	der, err := build()
	if err != nil {
		return nil, err
	}
	c.key = key
	c.der = der
	return der, nil
}

// Invalidate drops the cached entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = ""
	c.der = nil
}
