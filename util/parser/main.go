package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hlsfrag/enums"
	"hlsfrag/models"
	"hlsfrag/util"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxPlaylistSize    = 8 * 1024 * 1024
)

var defaultHTTPClient = &http.Client{
	Timeout: defaultHTTPTimeout,
}

type ParseOptions struct {
	Client  models.HTTPClient
	Headers map[string]string
	Cookies []*http.Cookie
}

func (opts *ParseOptions) client() models.HTTPClient {
	if opts == nil || opts.Client == nil {
		return defaultHTTPClient
	}
	return opts.Client
}

func getVideoCodec(codecs string) enums.MediaCodec {
	codecs = strings.ToLower(codecs)
	switch {
	case strings.Contains(codecs, "avc") || strings.Contains(codecs, "h264"):
		return enums.MediaCodecAVC
	case strings.Contains(codecs, "hvc") || strings.Contains(codecs, "h265") || strings.Contains(codecs, "hev1"):
		return enums.MediaCodecHEVC
	case strings.Contains(codecs, "av01"):
		return enums.MediaCodecAV1
	case strings.Contains(codecs, "vp9") || strings.Contains(codecs, "vp09"):
		return enums.MediaCodecVP9
	case strings.Contains(codecs, "vp8"):
		return enums.MediaCodecVP8
	default:
		return ""
	}
}

func getAudioCodec(codecs string) enums.MediaCodec {
	codecs = strings.ToLower(codecs)
	switch {
	case strings.Contains(codecs, "mp4a"):
		return enums.MediaCodecAAC
	case strings.Contains(codecs, "opus"):
		return enums.MediaCodecOpus
	case strings.Contains(codecs, "mp3"):
		return enums.MediaCodecMP3
	case strings.Contains(codecs, "flac"):
		return enums.MediaCodecFLAC
	case strings.Contains(codecs, "vorbis"):
		return enums.MediaCodecVorbis
	default:
		return ""
	}
}

// fetches a playlist and returns its body
// along with the url it was served from after redirects
func fetchContent(ctx context.Context, url string, opts *ParseOptions) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	if opts != nil {
		for key, value := range opts.Headers {
			req.Header.Set(key, value)
		}
		for _, cookie := range opts.Cookies {
			req.AddCookie(cookie)
		}
	}

	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: %d", util.ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read playlist: %w", err)
	}
	if len(body) > maxPlaylistSize {
		return nil, "", fmt.Errorf("%w: playlist exceeds %s", util.ErrFileTooLarge, humanize.Bytes(maxPlaylistSize))
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	zap.S().Debugf("fetched playlist %s (%s)", finalURL, humanize.Bytes(uint64(len(body))))
	return body, finalURL, nil
}
