package downloader

import (
	"context"
	"sync/atomic"
)

type loader struct {
	id      string
	cancel  context.CancelFunc
	aborted atomic.Bool
}

func (l *loader) ID() string {
	return l.id
}

// Abort cancels the fetch, the entry is reported through OnAbort
// unless a terminal outcome was already delivered.
func (l *loader) Abort() {
	l.aborted.Store(true)
	l.cancel()
}
