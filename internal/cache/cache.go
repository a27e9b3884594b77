package cache

import (
	"time"
)

// Cache defines the interface for caching rendered output
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// SectionKey keys one rendered section by a digest of the snapshot content.
// Identical input always renders identical bytes, so the key is stable.
func SectionKey(digest, section string) string {
	return "gstgraph:v1:" + digest + ":" + section
}

// GetOrRender returns cached bytes for key or renders, stores and returns them
func GetOrRender(c Cache, key string, ttl time.Duration, render func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(key); ok {
		return data, true, nil
	}
	data, err := render()
	if err != nil {
		return nil, false, err
	}
	if err := c.Set(key, data, ttl); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

// NopCache never stores anything
type NopCache struct{}

// Get always misses
func (NopCache) Get(string) ([]byte, bool) { return nil, false }

// Set discards the value
func (NopCache) Set(string, []byte, time.Duration) error { return nil }

// Delete is a no-op
func (NopCache) Delete(string) error { return nil }

// Clear is a no-op
func (NopCache) Clear() error { return nil }
