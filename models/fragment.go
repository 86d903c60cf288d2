package models

import (
	"fmt"
	"maps"
	"sync"

	"hlsfrag/enums"

	"github.com/pkg/errors"
)

// ByteRange addresses Length bytes starting at Offset.
// the zero value is the whole resource.
type ByteRange struct {
	Offset int64
	Length int64 // zero means "until the end"
}

// IsWhole reports whether the range addresses the entire resource.
func (r ByteRange) IsWhole() bool {
	return r.Offset == 0 && r.Length <= 0
}

func (r ByteRange) Header() string {
	if r.Length <= 0 {
		return fmt.Sprintf("bytes=%d-", r.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Length-1)
}

// RequestContext describes how a fragment is fetched.
// it is forwarded verbatim to the transport and back to the caller.
type RequestContext struct {
	URL          string
	Range        ByteRange
	ResponseType enums.ResponseType
	Headers      map[string]string
}

type FragmentEncryption struct {
	Kind   enums.EncryptionKind
	Legacy *LegacyKey
	Modern *ModernKey
}

// Variant returns the kind of encryption held by e. an unset kind is
// taken from the key that is present, keys that contradict the kind
// are an error.
func (e FragmentEncryption) Variant() (enums.EncryptionKind, error) {
	if e.Legacy != nil && e.Modern != nil {
		return "", errors.New("both legacy and modern keys are set")
	}
	kind := e.Kind
	if kind == "" {
		kind = inferEncryptionKind(e)
	}
	switch kind {
	case enums.EncryptionNone:
		if e.Legacy != nil || e.Modern != nil {
			return "", errors.New("key metadata on an unencrypted fragment")
		}
	case enums.EncryptionLegacy:
		if e.Legacy == nil {
			return "", errors.New("legacy encryption without a key")
		}
		if e.Legacy.URI == "" {
			return "", errors.New("legacy encryption without a key uri")
		}
	case enums.EncryptionModern:
		if e.Legacy != nil {
			return "", errors.New("legacy key on a modern encrypted fragment")
		}
	default:
		return "", errors.Errorf("unknown encryption kind %q", kind)
	}
	return kind, nil
}

func inferEncryptionKind(e FragmentEncryption) enums.EncryptionKind {
	switch {
	case e.Legacy != nil:
		return enums.EncryptionLegacy
	case e.Modern != nil:
		return enums.EncryptionModern
	default:
		return enums.EncryptionNone
	}
}

func NoEncryption() FragmentEncryption {
	return FragmentEncryption{Kind: enums.EncryptionNone}
}

func LegacyEncryption(keyURI string, iv []byte) FragmentEncryption {
	return FragmentEncryption{
		Kind:   enums.EncryptionLegacy,
		Legacy: &LegacyKey{URI: keyURI, IV: iv},
	}
}

func ModernEncryption(method string, keyFormat string) FragmentEncryption {
	return FragmentEncryption{
		Kind:   enums.EncryptionModern,
		Modern: &ModernKey{Method: method, KeyFormat: keyFormat},
	}
}

type Fragment struct {
	SN         uint64
	Duration   float64
	IsInit     bool
	Context    *RequestContext
	Encryption FragmentEncryption

	// transitionMu serializes a status write with its notification,
	// statusMu only guards the field so observers can read it
	// while a notification is being delivered
	transitionMu sync.Mutex
	statusMu     sync.RWMutex
	status       enums.DownloadStatus
}

func NewFragment(sn uint64, reqCtx *RequestContext, encryption FragmentEncryption) *Fragment {
	if encryption.Kind == "" {
		encryption.Kind = inferEncryptionKind(encryption)
	}
	return &Fragment{
		SN:         sn,
		Context:    reqCtx,
		Encryption: encryption,
		status:     enums.DownloadStatusWaiting,
	}
}

// String names the fragment in logs and errors. an init segment
// shares its sequence number with the first media segment it serves.
func (frag *Fragment) String() string {
	if frag.IsInit {
		return fmt.Sprintf("init fragment %d", frag.SN)
	}
	return fmt.Sprintf("fragment %d", frag.SN)
}

func (frag *Fragment) URL() string {
	if frag.Context == nil {
		return ""
	}
	return frag.Context.URL
}

func (frag *Fragment) Status() enums.DownloadStatus {
	frag.statusMu.RLock()
	defer frag.statusMu.RUnlock()
	if frag.status == "" {
		return enums.DownloadStatusWaiting
	}
	return frag.status
}

// Transition computes the next status from the current one and, if it changed,
// stores it and runs notify before any other transition of this fragment can start.
func (frag *Fragment) Transition(
	next func(enums.DownloadStatus) (enums.DownloadStatus, bool),
	notify func(*Fragment),
) bool {
	frag.transitionMu.Lock()
	defer frag.transitionMu.Unlock()

	status, changed := next(frag.Status())
	if !changed {
		return false
	}
	frag.statusMu.Lock()
	frag.status = status
	frag.statusMu.Unlock()
	if notify != nil {
		notify(frag)
	}
	return true
}

// MergeHeaders layers header maps, later maps override earlier ones.
func MergeHeaders(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		maps.Copy(merged, layer)
	}
	return merged
}
