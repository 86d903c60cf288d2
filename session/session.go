// Package session owns everything a playback session shares between
// its fragment requests: headers, cookies, the transport, the fragment
// cache and the lifecycle event listeners.
package session

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"sync"
	"time"

	"hlsfrag/database"
	"hlsfrag/downloader"
	"hlsfrag/enums"
	"hlsfrag/models"
	"hlsfrag/requester"
	"hlsfrag/util"
	"hlsfrag/util/networking"
	"hlsfrag/util/parser"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultSQLiteDSN = "hlsfrag-cache.db"

// Listener receives lifecycle events. it runs while the fragment's
// status is held, so it must not request the same fragment itself.
type Listener func(fragment *models.Fragment)

type Options struct {
	Download *models.DownloadConfig
	Session  *models.SessionConfig
	Network  networking.ClientOptions

	CacheDriver string
	CacheDSN    string
	CacheMaxAge time.Duration

	// Client overrides the client built from Network.
	Client models.HTTPClient
}

type Session struct {
	id string

	mu        sync.RWMutex
	headers   map[string]string
	listeners map[enums.PlayerEvent][]Listener

	cookies   []*http.Cookie
	client    models.HTTPClient
	store     *database.Store
	transport *downloader.Manager
	requester *requester.Requester

	closeOnce sync.Once
}

func New(opts Options) (*Session, error) {
	sessionConfig := opts.Session
	if sessionConfig == nil {
		sessionConfig = &models.SessionConfig{}
	}
	downloadConfig := models.GetDownloadConfig(opts.Download)

	s := &Session{
		id:        uuid.NewString(),
		headers:   make(map[string]string),
		listeners: make(map[enums.PlayerEvent][]Listener),
	}
	maps.Copy(s.headers, sessionConfig.Headers)

	if sessionConfig.CookiesFile != "" {
		cookies, err := ParseCookieFile(sessionConfig.CookiesFile)
		if err != nil {
			return nil, err
		}
		s.cookies = cookies
		downloadConfig.Cookies = append(downloadConfig.Cookies, cookies...)
		zap.S().Debugf("loaded %d cookies from %s", len(cookies), sessionConfig.CookiesFile)
	}

	s.client = opts.Client
	if s.client == nil {
		network := opts.Network
		// proxies from the session file win over the environment
		if sessionConfig.HTTPProxy != "" || sessionConfig.HTTPSProxy != "" {
			network.Proxy = networking.ProxyConfig{
				HTTPProxy:  sessionConfig.HTTPProxy,
				HTTPSProxy: sessionConfig.HTTPSProxy,
				NoProxy:    sessionConfig.NoProxy,
			}
		}
		if network.Timeout <= 0 {
			network.Timeout = downloadConfig.Timeout
		}
		s.client = networking.NewClient(network)
	}

	cache, err := s.openCache(opts, downloadConfig)
	if err != nil {
		return nil, err
	}

	s.transport = downloader.NewManager(s.client, downloadConfig, cache)
	s.requester = requester.New(requester.Dependencies{
		Transport: s.transport,
		Headers:   s,
		Events:    s,
	})
	zap.S().Debugf("session %s started", s.id)
	return s, nil
}

func (s *Session) openCache(opts Options, downloadConfig *models.DownloadConfig) (models.FileCache, error) {
	switch opts.CacheDriver {
	case "", "memory":
		if downloadConfig.CacheSize == 0 {
			return nil, nil
		}
		return downloader.NewMemoryCache(downloadConfig.CacheSize)
	case "sqlite", "mysql":
		dsn := opts.CacheDSN
		if dsn == "" && opts.CacheDriver == "sqlite" {
			dsn = defaultSQLiteDSN
		}
		store, err := database.Open(opts.CacheDriver, dsn)
		if err != nil {
			return nil, err
		}
		if opts.CacheMaxAge > 0 {
			purged, err := store.Purge(opts.CacheMaxAge)
			if err != nil {
				zap.S().Warnf("failed to purge fragment cache: %v", err)
			} else if purged > 0 {
				zap.S().Infof("purged %d expired cached fragments", purged)
			}
		}
		s.store = store
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", opts.CacheDriver)
	}
}

func (s *Session) ID() string {
	return s.id
}

// Headers returns a copy of the session headers.
func (s *Session) Headers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.headers)
}

func (s *Session) SetHeader(key string, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.headers, key)
		return
	}
	s.headers[key] = value
}

// On registers listener for event.
func (s *Session) On(event enums.PlayerEvent, listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

func (s *Session) Emit(event enums.PlayerEvent, fragment *models.Fragment) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()
	for _, listener := range listeners {
		listener(fragment)
	}
}

func (s *Session) Requester() *requester.Requester {
	return s.requester
}

// RequestFragment fetches fragment through the session requester.
func (s *Session) RequestFragment(
	ctx context.Context,
	fragment *models.Fragment,
	callbacks requester.Callbacks,
	opts *requester.RequestOptions,
) (*requester.Request, error) {
	return s.requester.RequestFragment(ctx, fragment, callbacks, opts)
}

// LoadPlaylist fetches a playlist with the session headers and cookies.
func (s *Session) LoadPlaylist(ctx context.Context, playlistURL string) (*models.MediaPlaylist, error) {
	return parser.LoadMediaPlaylist(ctx, playlistURL, &parser.ParseOptions{
		Client:  s.client,
		Headers: s.Headers(),
		Cookies: s.cookies,
	})
}

// Close releases the requester and the persistent cache.
func (s *Session) Close() error {
	var err error = util.ErrSessionClosed
	s.closeOnce.Do(func() {
		err = s.requester.Destroy()
		if s.store != nil {
			if closeErr := s.store.Close(); closeErr != nil {
				err = errors.Wrap(closeErr, "failed to close fragment cache")
			}
		}
		zap.S().Debugf("session %s closed", s.id)
	})
	return err
}
