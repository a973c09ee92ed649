package schema

import (
	"sync"

	"github.com/scidms/dms/dmserr"
)

// Cache holds one parsed Schema per database name. It is safe for
// concurrent readers and tolerates a single writer serialized against
// them (spec.md §5), using a plain RWMutex — the cache is read-mostly and
// invalidated only by an explicit schema re-import, so nothing fancier
// than sync.RWMutex is warranted.
type Cache struct {
	mu   sync.RWMutex
	byDB map[string]*Schema
}

// NewCache returns an empty, ready-to-use Cache.
func NewCache() *Cache {
	return &Cache{byDB: make(map[string]*Schema)}
}

// Get returns the cached schema for db, or a SchemaError if none has been
// imported yet.
func (c *Cache) Get(db string) (*Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byDB[db]
	if !ok {
		return nil, dmserr.New(dmserr.SchemaError, "no schema imported for database %q", db)
	}
	return s, nil
}

// Has reports whether a schema has been imported for db.
func (c *Cache) Has(db string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byDB[db]
	return ok
}

// Set installs (or replaces) the cached schema for db.
func (c *Cache) Set(db string, s *Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byDB[db] = s
}

// Invalidate drops the cached schema for db, forcing the next Get to fail
// until Set is called again (the reimport path always calls Set
// immediately after, so in practice this is only a momentary state).
func (c *Cache) Invalidate(db string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byDB, db)
}
