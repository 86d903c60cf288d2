package downloader

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"hlsfrag/enums"
	"hlsfrag/models"
)

type fileEntry struct {
	url          string
	responseType enums.ResponseType

	mu      sync.Mutex
	stats   models.LoadStats
	data    []byte
	hasData bool
	err     error
}

func newFileEntry(req *models.FileRequest) *fileEntry {
	return &fileEntry{
		url:          req.URL,
		responseType: req.ResponseType,
	}
}

func (e *fileEntry) URL() string {
	return e.url
}

// Stats returns a snapshot of the load statistics.
func (e *fileEntry) Stats() *models.LoadStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := e.stats
	return &stats
}

func (e *fileEntry) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *fileEntry) Data(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.hasData {
		return nil, fmt.Errorf("entry %s has no payload", e.url)
	}
	if e.responseType == enums.ResponseTypeText && !utf8.Valid(e.data) {
		return nil, fmt.Errorf("entry %s is not valid UTF-8 text", e.url)
	}
	return bytes.Clone(e.data), nil
}

func (e *fileEntry) setData(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = data
	e.hasData = true
}

func (e *fileEntry) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *fileEntry) updateStats(fn func(stats *models.LoadStats)) models.LoadStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.stats)
	return e.stats
}
