package models

import (
	"time"

	"github.com/guregu/null/v6/zero"
	"gorm.io/gorm"
)

type CachedFile struct {
	ID          uint        `json:"-"`
	CacheKey    string      `gorm:"not null;uniqueIndex;size:191" json:"cache_key"`
	URL         string      `gorm:"not null" json:"url"`
	ContentType zero.String `json:"content_type"`
	Size        int64       `json:"size"`
	Data        []byte      `json:"-"`

	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// FileCache stores fetched payloads keyed by URL and byte range.
type FileCache interface {
	Get(key string) (*CachedFile, bool, error)
	Put(file *CachedFile) error
}
