/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package packagejson

import (
	"sync"

	"bennypowers.dev/hotswap/fs"
)

// Cache memoizes parsed package.json files across resolutions.
type Cache interface {
	Get(path string) (*PackageJSON, bool)
	Set(path string, pkg *PackageJSON)
	Invalidate(path string)
	GetOrLoad(path string, loader func() (*PackageJSON, error)) (*PackageJSON, error)
}

type cacheEntry struct {
	ready chan struct{}
	pkg   *PackageJSON
	err   error
}

// MemoryCache is a thread-safe in-memory Cache. Failed loads are cached as
// well, so a missing package.json is probed once until it is invalidated.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*cacheEntry)}
}

// Get returns a successfully loaded package.json.
func (c *MemoryCache) Get(path string) (*PackageJSON, bool) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	select {
	case <-entry.ready:
	default:
		return nil, false
	}
	if entry.err != nil || entry.pkg == nil {
		return nil, false
	}
	return entry.pkg, true
}

// Set stores pkg for path.
func (c *MemoryCache) Set(path string, pkg *PackageJSON) {
	entry := &cacheEntry{ready: make(chan struct{}), pkg: pkg}
	close(entry.ready)

	c.mu.Lock()
	c.entries[path] = entry
	c.mu.Unlock()
}

// Invalidate forgets path, typically after the watcher saw it change.
func (c *MemoryCache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// GetOrLoad returns the cached result for path, running loader at most once
// per path while concurrent callers wait for it.
func (c *MemoryCache) GetOrLoad(path string, loader func() (*PackageJSON, error)) (*PackageJSON, error) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	if ok {
		c.mu.Unlock()
		<-entry.ready
		return entry.pkg, entry.err
	}
	entry = &cacheEntry{ready: make(chan struct{})}
	c.entries[path] = entry
	c.mu.Unlock()

	entry.pkg, entry.err = loader()
	close(entry.ready)
	return entry.pkg, entry.err
}

// Load parses path through the cache.
func (c *MemoryCache) Load(fsys fs.FileSystem, path string) (*PackageJSON, error) {
	return c.GetOrLoad(path, func() (*PackageJSON, error) {
		return ParseFile(fsys, path)
	})
}
