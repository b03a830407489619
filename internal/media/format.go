package media

import (
	"fmt"
	"strings"
)

// An empty codec means yt-dlp did not report one, which counts as absent.
func (f Format) hasVideo() bool { return f.VCodec != "" && f.VCodec != "none" }
func (f Format) hasAudio() bool { return f.ACodec != "" && f.ACodec != "none" }

func (f Format) isHLS() bool {
	return f.Ext == "m3u8" || strings.HasPrefix(f.Protocol, "m3u8")
}

func (f Format) Resolution() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}

// score favours formats carrying both audio and video, then taller ones.
func score(f Format) float64 {
	s := 0.0
	if f.hasVideo() {
		s++
	}
	if f.hasAudio() {
		s++
	}
	return s + float64(f.Height)/1000
}

// BestFormat picks the highest scoring progressive format, breaking ties by
// bitrate. Playlists and storyboards are skipped.
func BestFormat(formats []Format) (Format, bool) {
	var best Format
	found := false
	for _, f := range formats {
		if f.URL == "" || f.isHLS() || f.Ext == "mhtml" {
			continue
		}
		if !found {
			best, found = f, true
			continue
		}
		sf, sb := score(f), score(best)
		if sf > sb || (sf == sb && f.TBR > best.TBR) {
			best = f
		}
	}
	return best, found
}

// PickVariant returns the variant whose resolution equals width x height,
// falling back to the first variant with a URL.
func PickVariant(formats []Format, width, height int) (Format, bool) {
	want := fmt.Sprintf("%dx%d", width, height)
	var first *Format
	for i := range formats {
		f := formats[i]
		if f.URL == "" {
			continue
		}
		if f.Resolution() == want {
			return f, true
		}
		if first == nil {
			first = &formats[i]
		}
	}
	if first == nil {
		return Format{}, false
	}
	return *first, true
}

// PickLive returns the HLS format with the highest bitrate.
func PickLive(formats []Format) (Format, bool) {
	var best Format
	found := false
	for _, f := range formats {
		if f.URL == "" || !f.isHLS() {
			continue
		}
		if !found || f.TBR > best.TBR {
			best, found = f, true
		}
	}
	return best, found
}
