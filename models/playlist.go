package models

import (
	"hlsfrag/enums"
)

// MediaPlaylist is a parsed HLS media playlist.
type MediaPlaylist struct {
	URL            string      `json:"url"`
	MediaSequence  uint64      `json:"media_sequence"`
	TargetDuration float64     `json:"target_duration"`
	Duration       float64     `json:"duration"`
	Live           bool        `json:"live"`
	Fragments      []*Fragment `json:"-"`
}

// MediaFragments returns the fragments that are not init segments.
func (p *MediaPlaylist) MediaFragments() []*Fragment {
	fragments := make([]*Fragment, 0, len(p.Fragments))
	for _, frag := range p.Fragments {
		if !frag.IsInit {
			fragments = append(fragments, frag)
		}
	}
	return fragments
}

// Variant is one entry of a master playlist.
type Variant struct {
	URL        string           `json:"url"`
	Type       enums.MediaType  `json:"type"`
	VideoCodec enums.MediaCodec `json:"video_codec"`
	AudioCodec enums.MediaCodec `json:"audio_codec"`
	Bandwidth  int64            `json:"bandwidth"`
	Width      int64            `json:"width"`
	Height     int64            `json:"height"`
}
