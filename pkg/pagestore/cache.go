package pagestore

import lru "github.com/hashicorp/golang-lru/v2"

// smallPageCeiling is the largest page size that may attach to the
// shared read cache; levels above this bypass it.
const smallPageCeiling = 2048

// minCacheBytes is the floor small_page_cache_size is clamped up to.
const minCacheBytes = 64 << 20

// Cache is the LPVS's single shared read cache, keyed by data-id. It
// is a best-effort structure: correctness must not depend on
// retention; eviction is plain LRU via hashicorp's
// golang-lru, which is count- rather than byte-weighted, so the
// configured byte budget is converted to an entry count using the
// worst-case per-entry size (a full smallPageCeiling-byte page).
type Cache struct {
	inner *lru.Cache[uint64, []byte]
}

// NewCache builds a cache sized to hold at least capacityBytes worth
// of worst-case entries (clamped up to the 64 MiB floor).
func NewCache(capacityBytes int) *Cache {
	if capacityBytes < minCacheBytes {
		capacityBytes = minCacheBytes
	}
	entries := capacityBytes / smallPageCeiling
	if entries < 1 {
		entries = 1
	}
	inner, err := lru.New[uint64, []byte](entries)
	if err != nil {
		// lru.New only errors on size <= 0, which entries >= 1 above rules out.
		panic(err)
	}
	return &Cache{inner: inner}
}

func (c *Cache) Get(dataID uint64) ([]byte, bool) {
	return c.inner.Get(dataID)
}

func (c *Cache) Add(dataID uint64, page []byte) {
	c.inner.Add(dataID, page)
}

func (c *Cache) Remove(dataID uint64) {
	c.inner.Remove(dataID)
}
