package stepper

import "sync"

// Cache memoizes reconciled snapshots keyed by a stable natural key,
// normally the document number. Reconciliation is cheap but runs once per
// rendered row, so the listing layer computes each snapshot once per page
// and calls Invalidate whenever the underlying purchase list is replaced.
//
// The guarded read-check-insert keeps the cache safe if a host ever invokes
// it from more than one goroutine.
type Cache struct {
	mu    sync.Mutex
	steps map[string][]Step
}

// NewCache returns an empty snapshot cache.
func NewCache() *Cache {
	return &Cache{steps: make(map[string][]Step)}
}

// Get returns the cached snapshot for key, if any.
func (c *Cache) Get(key string) ([]Step, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	steps, ok := c.steps[key]
	return steps, ok
}

// GetOrCompute returns the cached snapshot for key, computing and storing it
// on first use. The compute function runs at most once per key between
// invalidations.
func (c *Cache) GetOrCompute(key string, compute func() []Step) []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	if steps, ok := c.steps[key]; ok {
		return steps
	}
	steps := compute()
	c.steps[key] = steps
	return steps
}

// Invalidate drops every cached snapshot. Called when a new page of
// purchases replaces the current one.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = make(map[string][]Step)
}
