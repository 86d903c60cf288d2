package requester

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"hlsfrag/models"
)

type fakeEntry struct {
	url     string
	stats   *models.LoadStats
	err     error
	data    []byte
	dataErr error
}

func (e *fakeEntry) URL() string              { return e.url }
func (e *fakeEntry) Stats() *models.LoadStats { return e.stats }
func (e *fakeEntry) Err() error               { return e.err }

func (e *fakeEntry) Data(ctx context.Context) ([]byte, error) {
	if e.dataErr != nil {
		return nil, e.dataErr
	}
	return e.data, nil
}

type fakeLoader struct {
	id      string
	cancel  context.CancelFunc
	aborted atomic.Bool
}

func (l *fakeLoader) ID() string { return l.id }

func (l *fakeLoader) Abort() {
	l.aborted.Store(true)
	l.cancel()
}

// fakeCall is one GetFile invocation, driven by the test.
type fakeCall struct {
	ctx      context.Context
	req      *models.FileRequest
	handlers models.FileHandlers
	loader   *fakeLoader
}

func (c *fakeCall) entry() *fakeEntry {
	return &fakeEntry{url: c.req.URL, stats: &models.LoadStats{}}
}

func (c *fakeCall) succeed(data []byte) {
	c.deliver(data, nil)
}

// deliver runs the pre-processor like a transport would and
// reports the matching outcome.
func (c *fakeCall) deliver(data []byte, dataErr error) {
	entry := c.entry()
	entry.stats.Loaded = int64(len(data))
	resp := &models.FileResponse{URL: c.req.URL, StatusCode: 200, Data: data}
	if c.req.PreProcessor != nil {
		out, err := c.req.PreProcessor(c.ctx, entry, resp)
		if err != nil {
			if c.loader.aborted.Load() {
				c.handlers.OnAbort(entry)
				return
			}
			entry.err = err
			c.handlers.OnFail(entry)
			return
		}
		resp = out
	}
	entry.data = resp.Data
	entry.dataErr = dataErr
	c.handlers.OnSuccess(entry, c.loader)
}

func (c *fakeCall) fail(err error) {
	entry := c.entry()
	entry.err = err
	c.handlers.OnFail(entry)
}

func (c *fakeCall) abort() {
	c.loader.aborted.Store(true)
	c.handlers.OnAbort(c.entry())
}

func (c *fakeCall) progress(loaded int64, chunk []byte) {
	if c.handlers.OnProgress == nil {
		return
	}
	// the transport's own context is a different value than the fragment's
	transportCtx := &models.RequestContext{URL: c.req.URL, Range: c.req.Range}
	c.handlers.OnProgress(&models.LoadStats{Loaded: loaded}, transportCtx, chunk, c.loader)
}

type fakeTransport struct {
	mu    sync.Mutex
	calls []*fakeCall
}

func (f *fakeTransport) GetFile(
	ctx context.Context,
	req *models.FileRequest,
	handlers models.FileHandlers,
) models.Loader {
	f.mu.Lock()
	defer f.mu.Unlock()

	loaderCtx, cancel := context.WithCancel(ctx)
	call := &fakeCall{
		ctx:      loaderCtx,
		req:      req,
		handlers: handlers,
		loader:   &fakeLoader{id: "loader-" + strconv.Itoa(len(f.calls)), cancel: cancel},
	}
	f.calls = append(f.calls, call)
	return call.loader
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) call(t *testing.T, i int) *fakeCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.calls) {
		t.Fatalf("expected at least %d transport calls, got %d", i+1, len(f.calls))
	}
	return f.calls[i]
}
