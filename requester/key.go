package requester

import (
	"context"
	"fmt"
	"sync"

	"hlsfrag/enums"
	"hlsfrag/models"
	"hlsfrag/util"

	"go.uber.org/zap"
)

type keyState int

const (
	keyPending keyState = iota
	keyReady
	keyFailed
)

// keyOutcome holds the result of a key sub-task. the failure of the
// sub-task is kept here and only reported when the key is needed.
type keyOutcome struct {
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	state keyState
	key   []byte
	err   error
}

func newKeyOutcome() *keyOutcome {
	return &keyOutcome{done: make(chan struct{})}
}

func (k *keyOutcome) resolve(key []byte) {
	k.settle(keyReady, key, nil)
}

func (k *keyOutcome) reject(err error) {
	k.settle(keyFailed, nil, err)
}

func (k *keyOutcome) settle(state keyState, key []byte, err error) {
	k.once.Do(func() {
		k.mu.Lock()
		k.state = state
		k.key = key
		k.err = err
		k.mu.Unlock()
		close(k.done)
	})
}

func (k *keyOutcome) State() keyState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// wait blocks until the sub-task settles or ctx is done.
func (k *keyOutcome) wait(ctx context.Context) ([]byte, error) {
	select {
	case <-k.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == keyFailed {
		return nil, k.err
	}
	return k.key, nil
}

// fetchKey starts the key sub-task without waiting for it.
func (r *Requester) fetchKey(
	ctx context.Context,
	keyURI string,
	headers map[string]string,
	opts *RequestOptions,
) (*keyOutcome, models.Loader) {
	outcome := newKeyOutcome()
	zap.S().Debugf("fetching key %s", keyURI)

	loader := r.deps.Transport.GetFile(ctx, &models.FileRequest{
		URL:           keyURI,
		ResponseType:  enums.ResponseTypeArrayBuffer,
		StoreRaw:      true,
		Headers:       headers,
		Timeout:       opts.Timeout,
		RetryAttempts: opts.RetryAttempts,
	}, models.FileHandlers{
		OnSuccess: func(entry models.FileEntry, _ models.Loader) {
			key, err := entry.Data(context.WithoutCancel(ctx))
			if err != nil {
				outcome.reject(fmt.Errorf("%w: %s: %w", util.ErrKeyFetch, keyURI, err))
				return
			}
			outcome.resolve(key)
		},
		OnFail: func(entry models.FileEntry) {
			zap.S().Debugf("failed to get key %s: %v", keyURI, entry.Err())
			outcome.reject(fmt.Errorf("%w: %s: %w", util.ErrKeyFetch, keyURI, entry.Err()))
		},
		OnAbort: func(entry models.FileEntry) {
			zap.S().Debugf("key fetch aborted: %s", keyURI)
			outcome.reject(fmt.Errorf("%w: %s: %w", util.ErrKeyFetch, keyURI, util.ErrAborted))
		},
	})
	return outcome, loader
}
