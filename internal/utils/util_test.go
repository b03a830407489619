package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyTime(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{61, "1:01"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-4, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrettyTime(tt.in))
	}
}

func TestEscapeMd(t *testing.T) {
	assert.Equal(t, `\*bold\* \_it\_ \`+"`"+`code\`+"`", EscapeMd("*bold* _it_ `code`"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "héll…", Truncate("héllo wörld", 5))
}

func TestBuildFFmpegHeaders(t *testing.T) {
	out := BuildFFmpegHeaders(map[string]string{
		"referer":    " https://www.youtube.com/ ",
		"user-agent": "kumastream",
	})
	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	assert.Equal(t, []string{
		"Accept: */*",
		"Accept-Language: en-US,en;q=0.9",
		"Connection: keep-alive",
		"Referer: https://www.youtube.com/",
		"User-Agent: kumastream",
	}, lines)
}

func TestBuildFFmpegHeaders_DefaultsOnly(t *testing.T) {
	out := BuildFFmpegHeaders(nil)
	assert.Contains(t, out, "User-Agent: Mozilla/5.0")
	assert.True(t, strings.HasSuffix(out, "\r\n"))
}
