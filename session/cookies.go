package session

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/aki237/nscjar"
)

var (
	cookiesCache   = make(map[string][]*http.Cookie)
	cookiesCacheMu sync.Mutex
)

// ParseCookieFile reads a Netscape cookie jar file.
func ParseCookieFile(path string) ([]*http.Cookie, error) {
	cookiesCacheMu.Lock()
	defer cookiesCacheMu.Unlock()

	cachedCookies, ok := cookiesCache[path]
	if ok {
		return cachedCookies, nil
	}
	cookieFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer cookieFile.Close()

	var parser nscjar.Parser
	cookies, err := parser.Unmarshal(cookieFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}
	cookiesCache[path] = cookies
	return cookies, nil
}
