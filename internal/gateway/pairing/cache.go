// Package pairing holds the most recent pairing artifact per session: the
// QR payload rendered as a scannable image. Entries are written on adapter
// events, read on demand, and explicitly purged on authentication success or
// session termination. Artifacts are never persisted.
package pairing

import (
	"sync"
)

// Cache maps session IDs to their latest rendered pairing artifact.
// Latest wins; no history is kept.
type Cache struct {
	mu        sync.RWMutex
	artifacts map[string]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{artifacts: make(map[string]string)}
}

// Put overwrites the cached artifact for a session.
func (c *Cache) Put(sessionID, artifact string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[sessionID] = artifact
}

// Get returns the cached artifact for a session. The second return value
// distinguishes "no artifact currently available" from an empty artifact.
func (c *Cache) Get(sessionID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	artifact, ok := c.artifacts[sessionID]
	return artifact, ok
}

// Purge removes the cached artifact for a session, if any.
func (c *Cache) Purge(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.artifacts, sessionID)
}
