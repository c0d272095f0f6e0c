// Package cache keeps recent retrieval results for repeated questions.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
	"sync"
	"time"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const (
	DefaultCacheSize = 100
	DefaultCacheTTL  = 5 * time.Minute
)

// QueryCache is a least recently used map of search results with a TTL.
// Keys include the checksum of the index that produced the results, so one
// cache can be shared by retrievers over different indexes.
type QueryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	lru   *list.List // front is most recently used
	items map[string]*list.Element
}

type cacheEntry struct {
	key     string
	results []domain.ScoredChunk
	expires time.Time
}

func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &QueryCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		lru:      list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// entryKey hashes the index checksum, k and the question. The checksum and k
// are length-prefixed so no two triples share an encoding.
func entryKey(checksum, question string, k int) string {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(checksum)))
	buf = append(buf, checksum...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(k))
	buf = append(buf, question...)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:16])
}

// Get returns a copy of the cached results, so callers may modify them.
func (c *QueryCache) Get(checksum, question string, k int) ([]domain.ScoredChunk, bool) {
	key := entryKey(checksum, question, k)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expires) {
		c.lru.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return slices.Clone(entry.results), true
}

// Put stores a copy of results, evicting the least recently used entry when
// the cache is full.
func (c *QueryCache) Put(checksum, question string, k int, results []domain.ScoredChunk) {
	key := entryKey(checksum, question, k)
	entry := &cacheEntry{
		key:     key,
		results: slices.Clone(results),
		expires: c.now().Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = entry
		c.lru.MoveToFront(el)
		return
	}
	if c.lru.Len() >= c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
	c.items[key] = c.lru.PushFront(entry)
}

func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

var _ port.Retriever = (*CachedRetriever)(nil)

// CachedRetriever serves repeated questions against one index from a
// QueryCache. Errors are never cached.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
	checksum  string
}

// NewCachedRetriever wraps retriever. checksum identifies the loaded index,
// normally its manifest checksum.
func NewCachedRetriever(retriever port.Retriever, cache *QueryCache, checksum string) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
		checksum:  checksum,
	}
}

func (r *CachedRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if results, hit := r.cache.Get(r.checksum, query, k); hit {
		return results, nil
	}

	results, err := r.retriever.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	r.cache.Put(r.checksum, query, k, results)
	return results, nil
}
