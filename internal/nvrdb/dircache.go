package nvrdb

import (
	"fmt"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SampleFileDir is an open handle to the directory on disk holding a
// stream's recorded sample files, identified by the id stream rows
// reference as sample_file_dir_id.
type SampleFileDir struct {
	ID   int64
	Path string
	f    *os.File
}

// Close releases the open directory handle.
func (d *SampleFileDir) Close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}

// DirCache bounds how many sample-file directories stay open
// concurrently: a deployment with hundreds of streams should not hold
// hundreds of file descriptors open at once just because each was
// touched recently.
type DirCache struct {
	mu    sync.Mutex
	cache *lru.Cache[int64, *SampleFileDir]
	open  func(id int64) (string, error)
}

// NewDirCache builds a cache of at most capacity open directory
// handles. open resolves a sample_file_dir_id to its filesystem path
// (normally a lookup against a small config-provided table).
func NewDirCache(capacity int, open func(id int64) (string, error)) (*DirCache, error) {
	c := &DirCache{open: open}
	evictCache, err := lru.NewWithEvict(capacity, func(_ int64, dir *SampleFileDir) {
		_ = dir.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("nvrdb: new dir cache: %w", err)
	}
	c.cache = evictCache
	return c, nil
}

// Get returns the open directory handle for id, opening and caching it
// if this is the first reference since the cache was created or since
// it was last evicted.
func (c *DirCache) Get(id int64) (*SampleFileDir, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dir, ok := c.cache.Get(id); ok {
		return dir, nil
	}
	path, err := c.open(id)
	if err != nil {
		return nil, fmt.Errorf("nvrdb: resolve sample file dir %d: %w", id, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nvrdb: open sample file dir %d (%s): %w", id, path, err)
	}
	dir := &SampleFileDir{ID: id, Path: path, f: f}
	c.cache.Add(id, dir)
	return dir, nil
}

// Len reports how many directory handles are currently cached.
func (c *DirCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Purge evicts and closes every cached handle; called on shutdown.
func (c *DirCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}
