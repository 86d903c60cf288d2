package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"hlsfrag/models"
	"hlsfrag/util"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/guregu/null/v6/zero"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Manager fetches files over HTTP and implements models.Transport.
type Manager struct {
	client    models.HTTPClient
	config    *models.DownloadConfig
	cache     models.FileCache
	semaphore chan struct{}
}

// NewManager creates a manager, cache may be nil to disable caching.
func NewManager(
	client models.HTTPClient,
	config *models.DownloadConfig,
	cache models.FileCache,
) *Manager {
	config = models.GetDownloadConfig(config)
	return &Manager{
		client:    client,
		config:    config,
		cache:     cache,
		semaphore: make(chan struct{}, config.Concurrency),
	}
}

func (m *Manager) GetFile(
	ctx context.Context,
	req *models.FileRequest,
	handlers models.FileHandlers,
) models.Loader {
	loaderCtx, cancel := context.WithCancel(ctx)
	l := &loader{
		id:     uuid.NewString(),
		cancel: cancel,
	}
	entry := newFileEntry(req)
	go m.run(loaderCtx, l, req, entry, handlers)
	return l
}

func (m *Manager) run(
	ctx context.Context,
	l *loader,
	req *models.FileRequest,
	entry *fileEntry,
	handlers models.FileHandlers,
) {
	defer l.cancel()

	entry.updateStats(func(stats *models.LoadStats) {
		stats.RequestStart = time.Now()
	})
	err := m.load(ctx, l, req, entry, handlers)
	m.finish(ctx, l, entry, handlers, err)
}

func (m *Manager) load(
	ctx context.Context,
	l *loader,
	req *models.FileRequest,
	entry *fileEntry,
	handlers models.FileHandlers,
) error {
	cacheKey := CacheKey(req)
	useCache := m.cache != nil && !req.StoreRaw

	if useCache {
		cached, ok, err := m.cache.Get(cacheKey)
		if err != nil {
			zap.S().Warnf("cache lookup failed for %s: %v", req.URL, err)
		} else if ok {
			zap.S().Debugf("cache hit: %s", req.URL)
			entry.updateStats(func(stats *models.LoadStats) {
				now := time.Now()
				stats.Cached = true
				stats.Loaded = cached.Size
				stats.Total = cached.Size
				stats.FirstByte = now
				stats.LoadEnd = now
			})
			entry.setData(cached.Data)
			return nil
		}
	}

	data, resp, err := m.fetch(ctx, l, req, entry, handlers)
	if err != nil {
		return err
	}
	if req.PreProcessor != nil {
		processed, err := req.PreProcessor(ctx, entry, resp)
		if err != nil {
			return err
		}
		if processed != nil {
			resp = processed
		}
		data = resp.Data
	}
	entry.setData(data)

	if useCache {
		err := m.cache.Put(&models.CachedFile{
			CacheKey:    cacheKey,
			URL:         req.URL,
			ContentType: zero.StringFrom(resp.ContentType),
			Size:        int64(len(data)),
			Data:        data,
		})
		if err != nil {
			zap.S().Warnf("failed to cache %s: %v", req.URL, err)
		}
	}
	return nil
}

// finish reports the single terminal outcome of a fetch.
func (m *Manager) finish(
	ctx context.Context,
	l *loader,
	entry *fileEntry,
	handlers models.FileHandlers,
	err error,
) {
	entry.updateStats(func(stats *models.LoadStats) {
		stats.LoadEnd = time.Now()
	})
	switch {
	case l.aborted.Load() || ctx.Err() != nil:
		entry.setErr(fmt.Errorf("%w: %s", util.ErrAborted, entry.URL()))
		zap.S().Debugf("fetch aborted: %s", entry.URL())
		if handlers.OnAbort != nil {
			handlers.OnAbort(entry)
		}
	case err != nil:
		entry.setErr(err)
		zap.S().Debugf("fetch failed: %s: %v", entry.URL(), err)
		if handlers.OnFail != nil {
			handlers.OnFail(entry)
		}
	default:
		stats := entry.Stats()
		zap.S().Debugf(
			"fetched %s (%s, cached=%t)",
			entry.URL(), humanize.Bytes(uint64(stats.Loaded)), stats.Cached,
		)
		if handlers.OnSuccess != nil {
			handlers.OnSuccess(entry, l)
		}
	}
}

func (m *Manager) fetch(
	ctx context.Context,
	l *loader,
	req *models.FileRequest,
	entry *fileEntry,
	handlers models.FileHandlers,
) ([]byte, *models.FileResponse, error) {
	// the slot is released before the pre-processor runs,
	// a fragment waiting on its key must not hold it
	select {
	case m.semaphore <- struct{}{}:
		defer func() { <-m.semaphore }()
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	attempts := m.config.RetryAttempts
	if req.RetryAttempts > 0 {
		attempts = req.RetryAttempts
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			// wait before retry
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(m.config.RetryDelay):
			}
			entry.updateStats(func(stats *models.LoadStats) {
				stats.Retries = attempt
			})
		}

		data, resp, err := m.fetchOnce(ctx, l, req, entry, handlers)
		if err == nil {
			return data, resp, nil
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		var permanent *permanentError
		if errors.As(err, &permanent) {
			return nil, nil, permanent.err
		}
		zap.S().Debugf("fetch of %s failed (attempt %d): %v", req.URL, attempt+1, err)
		lastErr = err
	}

	return nil, nil, fmt.Errorf("all %d attempts failed: %w", attempts+1, lastErr)
}

// permanentError stops the retry loop.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

func (m *Manager) fetchOnce(
	ctx context.Context,
	l *loader,
	req *models.FileRequest,
	entry *fileEntry,
	handlers models.FileHandlers,
) ([]byte, *models.FileResponse, error) {
	timeout := m.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, nil, &permanentError{fmt.Errorf("failed to create request: %w", err)}
	}
	for key, value := range m.config.Headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	for _, cookie := range m.config.Cookies {
		httpReq.AddCookie(cookie)
	}
	if !req.Range.IsWhole() {
		httpReq.Header.Set("Range", req.Range.Header())
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		err := fmt.Errorf("%w: %d", util.ErrUnexpectedStatus, resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, nil, err
		}
		return nil, nil, &permanentError{err}
	}
	if resp.ContentLength > int64(m.config.MaxInMemory) {
		return nil, nil, &permanentError{fmt.Errorf(
			"%w: %s", util.ErrFileTooLarge,
			humanize.Bytes(uint64(resp.ContentLength)),
		)}
	}

	total := resp.ContentLength
	entry.updateStats(func(stats *models.LoadStats) {
		stats.FirstByte = time.Now()
		stats.Loaded = 0
		stats.Total = total
	})

	progressCtx := &models.RequestContext{
		URL:          req.URL,
		Range:        req.Range,
		ResponseType: req.ResponseType,
		Headers:      req.Headers,
	}

	var data []byte
	if total > 0 {
		data = make([]byte, 0, total)
	} else {
		data = make([]byte, 0, m.config.ProgressChunk)
	}

	// use a limited reader to prevent
	// exceeding memory limits even if content-length is wrong
	limitedReader := io.LimitReader(resp.Body, int64(m.config.MaxInMemory)+1)
	buf := make([]byte, m.config.ProgressChunk)
	for {
		n, err := io.ReadFull(limitedReader, buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			if len(data) > m.config.MaxInMemory {
				return nil, nil, &permanentError{util.ErrFileTooLarge}
			}
			stats := entry.updateStats(func(stats *models.LoadStats) {
				stats.Loaded = int64(len(data))
			})
			if handlers.OnProgress != nil {
				handlers.OnProgress(&stats, progressCtx, bytes.Clone(buf[:n]), l)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read response body: %w", err)
		}
	}

	if total > 0 && int64(len(data)) != total {
		return nil, nil, fmt.Errorf("short body: got %d of %d bytes", len(data), total)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return data, &models.FileResponse{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
