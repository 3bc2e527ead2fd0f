package tone

import "sync"

type cacheKey struct {
	params     Params
	sampleRate int
}

// Cache stores synthesized buffers keyed by params and sample rate
type Cache struct {
	mu    sync.RWMutex
	store map[cacheKey]Buffer
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{store: make(map[cacheKey]Buffer)}
}

// Get returns the cached buffer or synthesizes it on demand
func (c *Cache) Get(p Params, sampleRate int) (Buffer, error) {
	key := cacheKey{params: p, sampleRate: sampleRate}

	c.mu.RLock()
	if buf, ok := c.store[key]; ok {
		c.mu.RUnlock()
		return buf, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if buf, ok := c.store[key]; ok {
		return buf, nil
	}

	buf, err := Synthesize(p, sampleRate)
	if err != nil {
		return Buffer{}, err
	}
	c.store[key] = buf
	return buf, nil
}

// Preload synthesizes the given params ahead of first presentation
func (c *Cache) Preload(sampleRate int, params ...Params) error {
	for _, p := range params {
		if _, err := c.Get(p, sampleRate); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of cached buffers
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
