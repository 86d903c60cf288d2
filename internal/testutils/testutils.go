// Package testutils provides shared fixtures for package tests.
package testutils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"hlsfrag/enums"
	"hlsfrag/models"
)

// EncryptAES128 encrypts plaintext with AES-128-CBC and PKCS#7 padding,
// the way HLS packagers produce encrypted segments.
func EncryptAES128(t *testing.T, plaintext, key, iv []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	padding := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(bytes.Clone(plaintext), bytes.Repeat([]byte{byte(padding)}, padding)...)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

// GenerateTestData returns size bytes of a deterministic pattern.
func GenerateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// Server serves fixed payloads by path and records request headers.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	status   map[string]int
	requests map[string][]http.Header
}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		files:    make(map[string][]byte),
		status:   make(map[string]int),
		requests: make(map[string][]http.Header),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Add(path string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return s.URL + path
}

// Fail makes path answer with status.
func (s *Server) Fail(path string, status int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = status
	return s.URL + path
}

func (s *Server) Requests(path string) []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.requests[path]...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests[r.URL.Path] = append(s.requests[r.URL.Path], r.Header.Clone())
	data, ok := s.files[r.URL.Path]
	status := s.status[r.URL.Path]
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// EventRecorder is a models.EventSink keeping every emitted status.
type EventRecorder struct {
	mu     sync.Mutex
	events []enums.DownloadStatus
}

func (r *EventRecorder) Emit(event enums.PlayerEvent, fragment *models.Fragment) {
	if event != enums.EventFragmentUpdate {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fragment.Status())
}

func (r *EventRecorder) Statuses() []enums.DownloadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]enums.DownloadStatus(nil), r.events...)
}

func (r *EventRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// StaticHeaders is a models.HeaderProvider over a fixed map.
type StaticHeaders map[string]string

func (h StaticHeaders) Headers() map[string]string {
	return h
}
