package models

import (
	"context"
	"net/http"
	"time"

	"hlsfrag/enums"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type LoadStats struct {
	Loaded       int64
	Total        int64
	Retries      int
	Cached       bool
	RequestStart time.Time
	FirstByte    time.Time
	LoadEnd      time.Time
}

// FileResponse is what a PreProcessor receives and returns.
type FileResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Data        []byte
}

// PreProcessor runs after the bytes are retrieved and before the
// entry is handed back, the returned response replaces the original.
type PreProcessor func(ctx context.Context, entry FileEntry, resp *FileResponse) (*FileResponse, error)

type FileRequest struct {
	URL           string
	Range         ByteRange
	ResponseType  enums.ResponseType
	StoreRaw      bool // skip the cache, keep the bytes in memory only
	Headers       map[string]string
	Timeout       time.Duration
	RetryAttempts int
	PreProcessor  PreProcessor
}

// FileEntry is the transport's record of one fetch.
type FileEntry interface {
	URL() string
	Stats() *LoadStats
	Err() error
	// Data materializes the payload, it can fail even after a successful fetch
	Data(ctx context.Context) ([]byte, error)
}

// Loader is the cancellation handle of an in-flight fetch.
type Loader interface {
	ID() string
	Abort()
}

type FileHandlers struct {
	OnSuccess  func(entry FileEntry, loader Loader)
	OnFail     func(entry FileEntry)
	OnAbort    func(entry FileEntry)
	OnProgress func(stats *LoadStats, reqCtx *RequestContext, data []byte, loader Loader)
}

// Transport performs byte retrieval. GetFile returns immediately and
// reports exactly one of OnSuccess, OnFail or OnAbort later.
type Transport interface {
	GetFile(ctx context.Context, req *FileRequest, handlers FileHandlers) Loader
}

type HeaderProvider interface {
	Headers() map[string]string
}

type EventSink interface {
	Emit(event enums.PlayerEvent, fragment *Fragment)
}
