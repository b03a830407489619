package utils

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
)

func RandomUserAgent() string {
	const minMajor = 132
	const maxMajor = 138

	major := rand.IntN(maxMajor-minMajor+1) + minMajor
	return fmt.Sprintf(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
		major,
	)
}

// IsHTTP reports whether ref is an http(s) URL rather than a local path.
func IsHTTP(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// PlatformHeaders are sent when reading from a video platform's CDN.
func PlatformHeaders() map[string]string {
	return map[string]string{
		"Referer": "https://www.youtube.com/",
		"Origin":  "https://www.youtube.com",
	}
}

// BuildFFmpegHeaders builds the CRLF-joined value of ffmpeg's -headers
// option. Keys are canonicalized; missing browser defaults are filled in.
func BuildFFmpegHeaders(base map[string]string) string {
	h := make(map[string]string, len(base)+4)
	for k, v := range base {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		h[http.CanonicalHeaderKey(k)] = strings.TrimSpace(v)
	}
	defaults := map[string]string{
		"User-Agent":      RandomUserAgent(),
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"Connection":      "keep-alive",
	}
	for k, v := range defaults {
		if _, ok := h[k]; !ok {
			h[k] = v
		}
	}

	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(h)) {
		fmt.Fprintf(&b, "%s: %s\r\n", k, h[k])
	}
	return b.String()
}
