package requester

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hlsfrag/enums"
	"hlsfrag/models"
	"hlsfrag/util"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Dependencies are the collaborators of a Requester.
type Dependencies struct {
	Transport models.Transport
	Headers   models.HeaderProvider
	Events    models.EventSink
}

type Response struct {
	URL  string
	Data []byte
}

// Callbacks receive the outcome of a fragment request. exactly one of
// OnSuccess and OnFail is called, none if the request is aborted.
type Callbacks struct {
	OnSuccess  func(resp *Response, stats *models.LoadStats, reqCtx *models.RequestContext, err error)
	OnFail     func(entry models.FileEntry, err error)
	OnProgress func(stats *models.LoadStats, reqCtx *models.RequestContext, data []byte, loader models.Loader)
}

type RequestOptions struct {
	Headers       map[string]string
	Timeout       time.Duration
	RetryAttempts int
}

// Requester fetches fragments and decrypts AES-128 protected ones.
type Requester struct {
	deps    Dependencies
	tracker *tracker

	mu        sync.RWMutex
	decrypter *util.Decrypter
}

func New(deps Dependencies) *Requester {
	return &Requester{
		deps:      deps,
		tracker:   &tracker{notifier: &notifier{sink: deps.Events}},
		decrypter: util.NewDecrypter(),
	}
}

// Destroy releases the decrypter. requests still in flight
// fail if they reach decryption afterwards.
func (r *Requester) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.decrypter == nil {
		return util.ErrRequesterDestroyed
	}
	err := r.decrypter.Destroy()
	r.decrypter = nil
	return err
}

// Request is the cancellation handle of a fragment request.
type Request struct {
	id      string
	main    models.Loader
	key     models.Loader
	keyData *keyOutcome
	settled atomic.Bool
}

func (req *Request) ID() string {
	return req.id
}

// Abort cancels the fragment fetch and its key sub-task.
// the fragment goes back to waiting, no callback is invoked.
func (req *Request) Abort() {
	// the main fetch goes first so its outcome is the abort
	// and not the failure of the key it waits for
	if req.main != nil {
		req.main.Abort()
	}
	if req.key != nil {
		req.key.Abort()
	}
}

// settle reports whether this is the first terminal outcome.
func (req *Request) settle() bool {
	if !req.settled.CompareAndSwap(false, true) {
		return false
	}
	if req.key != nil && req.keyData.State() == keyPending {
		req.key.Abort()
	}
	return true
}

func (r *Requester) RequestFragment(
	ctx context.Context,
	fragment *models.Fragment,
	callbacks Callbacks,
	opts *RequestOptions,
) (*Request, error) {
	if fragment == nil || fragment.Context == nil {
		return nil, errors.New("fragment has no request context")
	}

	r.mu.RLock()
	decrypter := r.decrypter
	r.mu.RUnlock()
	if decrypter == nil {
		return nil, util.ErrRequesterDestroyed
	}

	encryption := fragment.Encryption
	kind, err := encryption.Variant()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", util.ErrInvalidEncryption, fragment, err)
	}
	if kind == enums.EncryptionModern {
		method := ""
		if encryption.Modern != nil {
			method = encryption.Modern.Method
		}
		return nil, fmt.Errorf("%w: %s uses %s", util.ErrUnsupportedEncryption, fragment, method)
	}

	if opts == nil {
		opts = &RequestOptions{}
	}
	reqCtx := fragment.Context

	r.tracker.apply(fragment, eventAdmit)

	var sessionHeaders map[string]string
	if r.deps.Headers != nil {
		sessionHeaders = r.deps.Headers.Headers()
	}

	request := &Request{}
	if kind == enums.EncryptionLegacy {
		request.keyData, request.key = r.fetchKey(
			ctx,
			encryption.Legacy.URI,
			models.MergeHeaders(opts.Headers, sessionHeaders),
			opts,
		)
	}

	request.main = r.deps.Transport.GetFile(ctx, &models.FileRequest{
		URL:           reqCtx.URL,
		Range:         reqCtx.Range,
		ResponseType:  reqCtx.ResponseType,
		Headers:       models.MergeHeaders(reqCtx.Headers, opts.Headers, sessionHeaders),
		Timeout:       opts.Timeout,
		RetryAttempts: opts.RetryAttempts,
		PreProcessor:  r.preProcessor(fragment, request.keyData, decrypter),
	}, r.handlers(ctx, fragment, request, callbacks))
	request.id = request.main.ID()

	return request, nil
}

// preProcessor decrypts the payload once the key sub-task has settled.
func (r *Requester) preProcessor(
	fragment *models.Fragment,
	key *keyOutcome,
	decrypter *util.Decrypter,
) models.PreProcessor {
	if key == nil {
		return func(_ context.Context, _ models.FileEntry, resp *models.FileResponse) (*models.FileResponse, error) {
			return resp, nil
		}
	}
	iv := fragment.Encryption.Legacy.IV
	return func(ctx context.Context, _ models.FileEntry, resp *models.FileResponse) (*models.FileResponse, error) {
		keyData, err := key.wait(ctx)
		if err != nil {
			return nil, err
		}
		plaintext, err := decrypter.Decrypt(ctx, resp.Data, iv, keyData)
		if err != nil {
			if !errors.Is(err, util.ErrDecryption) {
				err = fmt.Errorf("%w: %w", util.ErrDecryption, err)
			}
			return nil, err
		}
		zap.S().Debugf("decrypted %s (%d -> %d bytes)", fragment, len(resp.Data), len(plaintext))
		decrypted := *resp
		decrypted.Data = plaintext
		return &decrypted, nil
	}
}

func (r *Requester) handlers(
	ctx context.Context,
	fragment *models.Fragment,
	request *Request,
	callbacks Callbacks,
) models.FileHandlers {
	reqCtx := fragment.Context

	fail := func(entry models.FileEntry, err error) {
		r.tracker.apply(fragment, eventFail)
		zap.S().Debugf("%s failed: %v", fragment, err)
		if callbacks.OnFail != nil {
			callbacks.OnFail(entry, err)
		}
	}

	return models.FileHandlers{
		OnSuccess: func(entry models.FileEntry, _ models.Loader) {
			if !request.settle() {
				zap.S().Warnf("%s: ignoring repeated success", fragment)
				return
			}
			data, err := entry.Data(context.WithoutCancel(ctx))
			if err != nil {
				fail(entry, fmt.Errorf("%w: %w", util.ErrMaterialization, err))
				return
			}
			r.tracker.apply(fragment, eventComplete)
			if callbacks.OnSuccess != nil {
				callbacks.OnSuccess(&Response{
					URL:  entry.URL(),
					Data: data,
				}, entry.Stats(), reqCtx, nil)
			}
		},
		OnFail: func(entry models.FileEntry) {
			if !request.settle() {
				zap.S().Warnf("%s: ignoring failure after terminal outcome", fragment)
				return
			}
			fail(entry, entry.Err())
		},
		OnAbort: func(entry models.FileEntry) {
			if !request.settle() {
				return
			}
			zap.S().Debugf("%s aborted", fragment)
			r.tracker.apply(fragment, eventAbort)
		},
		OnProgress: func(stats *models.LoadStats, _ *models.RequestContext, data []byte, loader models.Loader) {
			if callbacks.OnProgress == nil || request.settled.Load() {
				return
			}
			callbacks.OnProgress(stats, reqCtx, data, loader)
		},
	}
}
