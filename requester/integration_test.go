package requester

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"hlsfrag/downloader"
	"hlsfrag/enums"
	"hlsfrag/internal/testutils"
	"hlsfrag/models"
)

// these tests run real background fetches, so they keep
// the default no-op logger instead of a test-bound one

func newManager(concurrency int, cache models.FileCache) *downloader.Manager {
	return downloader.NewManager(&http.Client{}, &models.DownloadConfig{
		Concurrency:   concurrency,
		Timeout:       5 * time.Second,
		RetryAttempts: 0,
		RetryDelay:    10 * time.Millisecond,
		ProgressChunk: 16,
		MaxInMemory:   1 << 20,
	}, cache)
}

type result struct {
	data []byte
	err  error
}

func collect(results chan<- result) Callbacks {
	return Callbacks{
		OnSuccess: func(resp *Response, _ *models.LoadStats, _ *models.RequestContext, _ error) {
			results <- result{data: resp.Data}
		},
		OnFail: func(_ models.FileEntry, err error) {
			results <- result{err: err}
		},
	}
}

func waitResult(t *testing.T, results <-chan result) result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the fragment")
		return result{}
	}
}

func TestEncryptedPlaylistOverHTTP(t *testing.T) {
	server := testutils.NewServer(t)
	keyURL := server.Add("/key.bin", testKey)

	cache, err := downloader.NewMemoryCache(8)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}
	events := &testutils.EventRecorder{}
	r := New(Dependencies{
		// a single slot makes every fragment compete with its key
		Transport: newManager(1, cache),
		Headers:   testutils.StaticHeaders{"X-Session": "abc"},
		Events:    events,
	})
	defer r.Destroy()

	const count = 6
	fragments := make([]*models.Fragment, count)
	plaintexts := make([][]byte, count)
	for i := range count {
		plaintexts[i] = testutils.GenerateTestData(100 + i*37)
		path := fmt.Sprintf("/seg%d.ts", i)
		url := server.Add(path, testutils.EncryptAES128(t, plaintexts[i], testKey, testIV))
		fragments[i] = models.NewFragment(uint64(i), &models.RequestContext{
			URL:          url,
			ResponseType: enums.ResponseTypeArrayBuffer,
		}, models.LegacyEncryption(keyURL, testIV))
	}

	results := make([]chan result, count)
	for i, frag := range fragments {
		results[i] = make(chan result, 1)
		if _, err := r.RequestFragment(context.Background(), frag, collect(results[i]), nil); err != nil {
			t.Fatalf("RequestFragment(%d): %v", i, err)
		}
	}

	for i := range fragments {
		res := waitResult(t, results[i])
		if res.err != nil {
			t.Fatalf("fragment %d failed: %v", i, res.err)
		}
		if !bytes.Equal(res.data, plaintexts[i]) {
			t.Errorf("fragment %d: decrypted payload mismatch", i)
		}
		if fragments[i].Status() != enums.DownloadStatusComplete {
			t.Errorf("fragment %d: expected complete, got %s", i, fragments[i].Status())
		}
	}

	if events.Count() != 2*count {
		t.Errorf("expected %d notifications, got %d", 2*count, events.Count())
	}
	// keys bypass the cache and are fetched per fragment
	if got := len(server.Requests("/key.bin")); got != count {
		t.Errorf("expected %d key requests, got %d", count, got)
	}
	for _, header := range server.Requests("/seg0.ts") {
		if header.Get("X-Session") != "abc" {
			t.Error("session header missing on fragment request")
		}
	}
}

func TestKeyNotFoundOverHTTP(t *testing.T) {
	server := testutils.NewServer(t)
	keyURL := server.Fail("/key.bin", http.StatusForbidden)
	segURL := server.Add("/seg.ts", testutils.EncryptAES128(t, testPlaintext, testKey, testIV))

	r := New(Dependencies{Transport: newManager(2, nil)})
	defer r.Destroy()

	frag := models.NewFragment(0, &models.RequestContext{URL: segURL}, models.LegacyEncryption(keyURL, testIV))
	results := make(chan result, 1)
	if _, err := r.RequestFragment(context.Background(), frag, collect(results), nil); err != nil {
		t.Fatalf("RequestFragment: %v", err)
	}

	res := waitResult(t, results)
	if res.err == nil {
		t.Fatal("expected the fragment to fail")
	}
	if frag.Status() != enums.DownloadStatusFailed {
		t.Errorf("expected failed, got %s", frag.Status())
	}
}

func TestAbortOverHTTP(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()

	server := testutils.NewServer(t)
	// the key endpoint stalls until the test ends
	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/key.bin" {
			select {
			case <-release:
			case <-req.Context().Done():
			}
			return
		}
		w.Write(testutils.EncryptAES128(t, testPlaintext, testKey, testIV))
	})

	events := &testutils.EventRecorder{}
	r := New(Dependencies{Transport: newManager(2, nil), Events: events})
	defer r.Destroy()

	frag := models.NewFragment(0, &models.RequestContext{
		URL: server.URL + "/seg.ts",
	}, models.LegacyEncryption(server.URL+"/key.bin", testIV))

	results := make(chan result, 1)
	request, err := r.RequestFragment(context.Background(), frag, collect(results), nil)
	if err != nil {
		t.Fatalf("RequestFragment: %v", err)
	}
	request.Abort()

	deadline := time.Now().Add(5 * time.Second)
	for events.Count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assertStatuses(t, events.Statuses(), []enums.DownloadStatus{
		enums.DownloadStatusInitiated,
		enums.DownloadStatusWaiting,
	})
	select {
	case res := <-results:
		t.Fatalf("expected no callback after abort, got %+v", res)
	case <-time.After(50 * time.Millisecond):
	}
}
