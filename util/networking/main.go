package networking

import (
	"net"
	"net/http"
	"time"

	"hlsfrag/models"

	"github.com/quic-go/quic-go/http3"
	"go.uber.org/zap"
)

// ProxyConfig routes requests through HTTP(S) proxies.
type ProxyConfig struct {
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

type ClientOptions struct {
	Proxy        ProxyConfig
	EdgeProxyURL string
	HTTP3        bool
	Timeout      time.Duration
}

func GetBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ResponseHeaderTimeout: 10 * time.Second,
		DisableCompression:    true, // range requests need raw bytes
	}
}

// NewClient picks the client matching opts: edge proxy,
// HTTP/3 or a plain transport with optional proxies.
func NewClient(opts ClientOptions) models.HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if opts.EdgeProxyURL != "" {
		zap.S().Debugf("using edge proxy %s", opts.EdgeProxyURL)
		return NewEdgeProxyClient(opts.EdgeProxyURL, timeout)
	}
	if opts.HTTP3 {
		zap.S().Debug("using HTTP/3 transport")
		return &http.Client{
			Transport: &http3.Transport{},
			Timeout:   timeout,
		}
	}
	transport := GetBaseTransport()
	if opts.Proxy.HTTPProxy != "" || opts.Proxy.HTTPSProxy != "" {
		configureProxyTransport(transport, opts.Proxy)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
