package templates

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCacheBytes bounds the raw template bytes held in memory
const DefaultCacheBytes = 16 * 1024 * 1024

// CacheStats reports template cache behaviour
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
	Bytes     int64 `json:"bytes"`
}

// cachedTemplate is one template file's raw bytes as of a modification time
type cachedTemplate struct {
	key     string
	modTime time.Time
	data    []byte
}

// byteCache is an LRU of template file bytes. An entry is only served while
// the file's modification time matches the one it was read at.
type byteCache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
	size     int64
	maxBytes int64
	stats    CacheStats
}

func newByteCache(maxBytes int64) *byteCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	return &byteCache{
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
		maxBytes: maxBytes,
	}
}

// get returns cached bytes for key when they were read at modTime
func (c *byteCache) get(key string, modTime time.Time) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	entry := node.Value.(*cachedTemplate)
	if !entry.modTime.Equal(modTime) {
		c.removeNode(node)
		c.stats.Misses++
		return nil, false
	}

	c.lru.MoveToFront(node)
	c.stats.Hits++
	return entry.data, true
}

// put stores data, evicting least recently used entries to stay under the limit.
// Data larger than the whole cache is not stored.
func (c *byteCache) put(key string, modTime time.Time, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.entries[key]; ok {
		c.removeNode(node)
	}
	size := int64(len(data))
	if size > c.maxBytes {
		return
	}

	for c.size+size > c.maxBytes {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeNode(oldest)
		c.stats.Evictions++
	}

	c.entries[key] = c.lru.PushFront(&cachedTemplate{key: key, modTime: modTime, data: data})
	c.size += size
}

func (c *byteCache) removeNode(node *list.Element) {
	entry := node.Value.(*cachedTemplate)
	c.lru.Remove(node)
	delete(c.entries, entry.key)
	c.size -= int64(len(entry.data))
}

func (c *byteCache) snapshot() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	s.Bytes = c.size
	return s
}
