package main

import (
	"context"
	"fmt"
	"io"

	"hlsfrag/models"
	"hlsfrag/requester"
	"hlsfrag/session"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type fragmentResult struct {
	data []byte
	err  error
}

// downloadPlaylist fetches every fragment of the playlist at playlistURL
// and writes the plaintext to out in playlist order.
func downloadPlaylist(
	ctx context.Context,
	s *session.Session,
	playlistURL string,
	out io.Writer,
	concurrency int,
) (string, error) {
	media, err := s.LoadPlaylist(ctx, playlistURL)
	if err != nil {
		return "", err
	}
	if media.Live {
		zap.S().Warn("playlist has no end tag, only the current window is fetched")
	}
	zap.S().Infof(
		"fetching %d fragments (%.1fs)",
		len(media.MediaFragments()), media.Duration,
	)

	written, err := fetchFragments(ctx, s, media.Fragments, out, concurrency)
	return humanize.Bytes(uint64(written)), err
}

func fetchFragments(
	ctx context.Context,
	s *session.Session,
	fragments []*models.Fragment,
	out io.Writer,
	concurrency int,
) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	results := make([]chan []byte, len(fragments))
	for i := range results {
		results[i] = make(chan []byte, 1)
	}

	// fragments complete in any order, they are written in playlist order
	var written int64
	writeErr := make(chan error, 1)
	go func() {
		defer close(writeErr)
		for i, ch := range results {
			select {
			case data := <-ch:
				n, err := out.Write(data)
				written += int64(n)
				if err != nil {
					writeErr <- fmt.Errorf("failed to write %s: %w", fragments[i], err)
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for i, frag := range fragments {
		g.Go(func() error {
			data, err := fetchFragment(gctx, s, frag)
			if err != nil {
				// gctx is also done once Wait returns, the writer
				// only stops on ctx
				cancel()
				return fmt.Errorf("%s: %w", frag, err)
			}
			results[i] <- data
			return nil
		})
	}

	fetchErr := g.Wait()
	if err, ok := <-writeErr; ok {
		return written, err
	}
	if fetchErr != nil {
		return written, fetchErr
	}
	// interrupted before every fragment was written
	return written, ctx.Err()
}

// fetchFragment requests one fragment and waits for its outcome.
func fetchFragment(ctx context.Context, s *session.Session, frag *models.Fragment) ([]byte, error) {
	done := make(chan fragmentResult, 1)
	request, err := s.RequestFragment(ctx, frag, requester.Callbacks{
		OnSuccess: func(resp *requester.Response, stats *models.LoadStats, _ *models.RequestContext, _ error) {
			zap.S().Debugf(
				"%s done: %s in %s (retries=%d, cached=%t)",
				frag, humanize.Bytes(uint64(len(resp.Data))),
				stats.LoadEnd.Sub(stats.RequestStart), stats.Retries, stats.Cached,
			)
			done <- fragmentResult{data: resp.Data}
		},
		OnFail: func(_ models.FileEntry, err error) {
			if err == nil {
				err = errors.New("fetch failed")
			}
			done <- fragmentResult{err: err}
		},
		OnProgress: func(stats *models.LoadStats, _ *models.RequestContext, _ []byte, _ models.Loader) {
			if stats.Total > 0 {
				zap.S().Debugf(
					"%s: %s / %s",
					frag, humanize.Bytes(uint64(stats.Loaded)), humanize.Bytes(uint64(stats.Total)),
				)
			}
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	select {
	case res := <-done:
		return res.data, res.err
	case <-ctx.Done():
		request.Abort()
		return nil, ctx.Err()
	}
}
