package parser

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"hlsfrag/enums"
	"hlsfrag/models"
	"hlsfrag/util"

	"github.com/grafov/m3u8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	methodNone   = "NONE"
	methodAES128 = "AES-128"

	keyFormatIdentity = "identity"
)

// ParseM3U8Content decodes a playlist. exactly one of the returned
// media playlist and variants is set, depending on the playlist type.
func ParseM3U8Content(
	content []byte,
	baseURL string,
) (*models.MediaPlaylist, []*models.Variant, error) {
	baseURLObj, err := url.Parse(baseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid base url: %w", err)
	}

	buf := bytes.NewBuffer(content)
	playlist, listType, err := m3u8.DecodeFrom(buf, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed parsing m3u8: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		variants := parseMasterPlaylist(
			playlist.(*m3u8.MasterPlaylist),
			baseURLObj,
		)
		return nil, variants, nil
	case m3u8.MEDIA:
		media, err := parseMediaPlaylist(
			playlist.(*m3u8.MediaPlaylist),
			baseURLObj,
		)
		return media, nil, err
	}

	return nil, nil, util.ErrUnsupportedPlaylist
}

// LoadMediaPlaylist fetches url and returns its fragments. a master
// playlist is resolved to its highest bandwidth variant.
func LoadMediaPlaylist(
	ctx context.Context,
	playlistURL string,
	opts *ParseOptions,
) (*models.MediaPlaylist, error) {
	content, finalURL, err := fetchContent(ctx, playlistURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch m3u8 content: %w", err)
	}
	media, variants, err := ParseM3U8Content(content, finalURL)
	if err != nil {
		return nil, err
	}
	if media != nil {
		return media, nil
	}

	variant := BestVariant(variants)
	if variant == nil {
		return nil, errors.New("master playlist has no playable variant")
	}
	zap.S().Infof(
		"selected variant %dx%d (%d bps, %s/%s)",
		variant.Width, variant.Height, variant.Bandwidth,
		variant.VideoCodec, variant.AudioCodec,
	)
	content, finalURL, err = fetchContent(ctx, variant.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch variant: %w", err)
	}
	media, _, err = ParseM3U8Content(content, finalURL)
	if err != nil {
		return nil, err
	}
	if media == nil {
		return nil, errors.Wrap(util.ErrUnsupportedPlaylist, "variant is not a media playlist")
	}
	return media, nil
}

// BestVariant returns the variant with the highest bandwidth.
func BestVariant(variants []*models.Variant) *models.Variant {
	var best *models.Variant
	for _, variant := range variants {
		if best == nil || variant.Bandwidth > best.Bandwidth {
			best = variant
		}
	}
	return best
}

func parseMasterPlaylist(
	playlist *m3u8.MasterPlaylist,
	baseURL *url.URL,
) []*models.Variant {
	variants := make([]*models.Variant, 0, len(playlist.Variants))
	for _, variant := range playlist.Variants {
		// i-frame playlists are not playable on their own
		if variant == nil || variant.URI == "" || variant.Iframe {
			continue
		}
		width, height := getResolution(variant.Resolution)
		mediaType, videoCodec, audioCodec := parseVariantType(variant)
		variants = append(variants, &models.Variant{
			URL:        resolveURL(baseURL, variant.URI),
			Type:       mediaType,
			VideoCodec: videoCodec,
			AudioCodec: audioCodec,
			Bandwidth:  int64(variant.Bandwidth),
			Width:      width,
			Height:     height,
		})
	}
	return variants
}

func parseMediaPlaylist(
	playlist *m3u8.MediaPlaylist,
	baseURL *url.URL,
) (*models.MediaPlaylist, error) {
	media := &models.MediaPlaylist{
		URL:            baseURL.String(),
		MediaSequence:  playlist.SeqNo,
		TargetDuration: playlist.TargetDuration,
		Live:           !playlist.Closed,
		Fragments:      make([]*models.Fragment, 0, len(playlist.Segments)),
	}

	// a key or map applies to every following segment
	// until it is replaced, the decoder only attaches
	// it to the first one
	currentKey, currentMap := playlistDefaults(playlist)
	var (
		emitted *m3u8.Map

		rangeURI   string
		nextOffset int64
	)

	index := uint64(0)
	for _, segment := range playlist.Segments {
		if segment == nil || segment.URI == "" {
			continue
		}
		sn := playlist.SeqNo + index
		index++

		if segment.Key != nil {
			currentKey = segment.Key
		}
		if segment.Map != nil {
			currentMap = segment.Map
		}
		encryption, err := parseEncryption(currentKey, baseURL, sn)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", sn, err)
		}

		if currentMap != nil && currentMap.URI != "" && !sameMap(currentMap, emitted) {
			emitted = currentMap
			initFrag := models.NewFragment(sn, &models.RequestContext{
				URL:          resolveURL(baseURL, currentMap.URI),
				Range:        byteRange(currentMap.Offset, currentMap.Limit),
				ResponseType: enums.ResponseTypeArrayBuffer,
			}, encryption)
			initFrag.IsInit = true
			media.Fragments = append(media.Fragments, initFrag)
		}

		segmentURL := resolveURL(baseURL, segment.URI)
		offset := segment.Offset
		if segment.Limit > 0 {
			// a sub-range without an offset starts where
			// the previous sub-range of the resource ended
			if offset == 0 && segmentURL == rangeURI {
				offset = nextOffset
			}
			rangeURI = segmentURL
			nextOffset = offset + segment.Limit
		} else {
			rangeURI = ""
		}

		frag := models.NewFragment(sn, &models.RequestContext{
			URL:          segmentURL,
			Range:        byteRange(offset, segment.Limit),
			ResponseType: enums.ResponseTypeArrayBuffer,
		}, encryption)
		frag.Duration = segment.Duration
		media.Duration += segment.Duration
		media.Fragments = append(media.Fragments, frag)
	}
	return media, nil
}

// playlistDefaults returns the header level key and map when
// no segment carries its own.
func playlistDefaults(playlist *m3u8.MediaPlaylist) (*m3u8.Key, *m3u8.Map) {
	key, xmap := playlist.Key, playlist.Map
	for _, segment := range playlist.Segments {
		if segment == nil {
			continue
		}
		if segment.Key != nil {
			key = nil
		}
		if segment.Map != nil {
			xmap = nil
		}
	}
	return key, xmap
}

// parseEncryption maps an EXT-X-KEY onto the encryption of
// the segment with media sequence number sn.
func parseEncryption(key *m3u8.Key, baseURL *url.URL, sn uint64) (models.FragmentEncryption, error) {
	if key == nil {
		return models.NoEncryption(), nil
	}
	method := strings.ToUpper(key.Method)
	keyFormat := key.Keyformat
	identity := keyFormat == "" || strings.EqualFold(keyFormat, keyFormatIdentity)

	switch {
	case method == methodNone || method == "":
		return models.NoEncryption(), nil
	case method == methodAES128 && identity:
		if key.URI == "" {
			return models.FragmentEncryption{}, errors.New("AES-128 key without URI")
		}
		iv, err := parseIV(key.IV, sn)
		if err != nil {
			return models.FragmentEncryption{}, err
		}
		return models.LegacyEncryption(resolveURL(baseURL, key.URI), iv), nil
	default:
		// SAMPLE-AES, SAMPLE-AES-CTR and DRM key formats
		// are decrypted by the media pipeline, not here
		return models.ModernEncryption(key.Method, keyFormat), nil
	}
}

// parseIV decodes a hexadecimal IV attribute, without one the
// media sequence number is used as the IV.
func parseIV(value string, sn uint64) ([]byte, error) {
	if value == "" {
		return util.SegmentIV(nil, sn), nil
	}
	value = strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	if len(value)%2 == 1 {
		value = "0" + value
	}
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid IV %q: %w", value, err)
	}
	if len(decoded) > 16 {
		return nil, fmt.Errorf("invalid IV %q: longer than 16 bytes", value)
	}
	// left pad to 128 bits
	iv := make([]byte, 16)
	copy(iv[16-len(decoded):], decoded)
	return iv, nil
}

func byteRange(offset int64, limit int64) models.ByteRange {
	if limit <= 0 {
		return models.ByteRange{}
	}
	return models.ByteRange{Offset: offset, Length: limit}
}

func sameMap(a *m3u8.Map, b *m3u8.Map) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.URI == b.URI && a.Limit == b.Limit && a.Offset == b.Offset
}

func getResolution(
	resolution string,
) (int64, int64) {
	var width, height int
	if _, err := fmt.Sscanf(resolution, "%dx%d", &width, &height); err == nil {
		return int64(width), int64(height)
	}
	return 0, 0
}

func parseVariantType(
	variant *m3u8.Variant,
) (enums.MediaType, enums.MediaCodec, enums.MediaCodec) {
	var mediaType enums.MediaType
	var videoCodec, audioCodec enums.MediaCodec

	videoCodec = getVideoCodec(variant.Codecs)
	audioCodec = getAudioCodec(variant.Codecs)

	if videoCodec != "" {
		mediaType = enums.MediaTypeVideo
	} else if audioCodec != "" {
		mediaType = enums.MediaTypeAudio
	}

	return mediaType, videoCodec, audioCodec
}

func resolveURL(base *url.URL, uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return base.ResolveReference(ref).String()
}
