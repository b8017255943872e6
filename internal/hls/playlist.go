// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"time"

	"github.com/grafov/m3u8"
)

// ErrEmptyMaster is returned when a master playlist lists no variants.
var ErrEmptyMaster = errors.New("hls: master playlist has no variants")

// Variant is one rendition of a master playlist.
type Variant struct {
	URL        string
	Bandwidth  uint32
	Resolution string
}

// Segment is one fragment of a media playlist, with an absolute URL.
type Segment struct {
	URL      string
	Duration time.Duration
	Seq      uint64
}

// MediaPlaylist is the decoded timeline of one rendition.
type MediaPlaylist struct {
	URL            string
	Segments       []Segment
	TargetDuration time.Duration
	TotalDuration  time.Duration
	IsVOD          bool // #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST
}

// Decoded is the result of decoding a playlist body. Exactly one of
// Variants or Media is set.
type Decoded struct {
	Variants []Variant
	Media    *MediaPlaylist
}

// Decode parses a master or media playlist. Relative URIs are resolved
// against base.
func Decode(r io.Reader, base string) (Decoded, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode playlist: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		variants := make([]Variant, 0, len(master.Variants))
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			variants = append(variants, Variant{
				URL:        ResolveURL(base, v.URI),
				Bandwidth:  v.Bandwidth,
				Resolution: v.Resolution,
			})
		}
		if len(variants) == 0 {
			return Decoded{}, ErrEmptyMaster
		}
		return Decoded{Variants: variants}, nil

	case m3u8.MEDIA:
		media, err := fromMedia(playlist.(*m3u8.MediaPlaylist), base)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Media: media}, nil
	}
	return Decoded{}, fmt.Errorf("decode playlist: unknown list type %d", listType)
}

func fromMedia(p *m3u8.MediaPlaylist, base string) (*MediaPlaylist, error) {
	out := &MediaPlaylist{
		URL:            base,
		TargetDuration: seconds(p.TargetDuration),
		IsVOD:          p.Closed || p.MediaType == m3u8.VOD,
	}

	var lastPDT time.Time
	seq := p.SeqNo
	for _, seg := range p.Segments {
		if seg == nil {
			continue
		}
		// Program date-times must never run backwards on a live timeline.
		if !seg.ProgramDateTime.IsZero() {
			if !lastPDT.IsZero() && seg.ProgramDateTime.Before(lastPDT) {
				return nil, fmt.Errorf("PDT non-monotonic: %v < %v", seg.ProgramDateTime, lastPDT)
			}
			lastPDT = seg.ProgramDateTime
		}
		d := seconds(seg.Duration)
		out.Segments = append(out.Segments, Segment{
			URL:      ResolveURL(base, seg.URI),
			Duration: d,
			Seq:      seq,
		})
		out.TotalDuration += d
		seq++
	}
	return out, nil
}

// SelectVariant returns the highest-bandwidth variant. Ties keep playlist order.
func SelectVariant(variants []Variant) Variant {
	sorted := append([]Variant(nil), variants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bandwidth > sorted[j].Bandwidth
	})
	return sorted[0]
}

// ResolveURL resolves ref against base. Unparseable input returns ref unchanged.
func ResolveURL(base, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	baseU, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseU.ResolveReference(u).String()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
