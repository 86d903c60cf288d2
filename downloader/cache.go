package downloader

import (
	"fmt"

	"hlsfrag/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache keeps the most recently fetched payloads in memory.
type MemoryCache struct {
	entries *lru.Cache[string, *models.CachedFile]
}

func NewMemoryCache(size int) (*MemoryCache, error) {
	entries, err := lru.New[string, *models.CachedFile](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Get(key string) (*models.CachedFile, bool, error) {
	file, ok := c.entries.Get(key)
	return file, ok, nil
}

func (c *MemoryCache) Put(file *models.CachedFile) error {
	c.entries.Add(file.CacheKey, file)
	return nil
}

func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// CacheKey identifies a payload by URL and byte range.
func CacheKey(req *models.FileRequest) string {
	if req.Range.IsWhole() {
		return req.URL
	}
	return req.URL + "#" + req.Range.Header()
}
