package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyTime(t *testing.T) {
	assert.Equal(t, "0:00", PrettyTime(0))
	assert.Equal(t, "3:05", PrettyTime(185))
	assert.Equal(t, "1:01:01", PrettyTime(3661))
	assert.Equal(t, "0:00", PrettyTime(-4))
}

func TestParseDuration(t *testing.T) {
	cases := map[string]int{
		"90":      90,
		"1:30":    90,
		"1:02:03": 3723,
		"1h2m3s":  3723,
		"2m":      120,
		" 45s ":   45,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "1:2:3:4", "-5", "1:x"} {
		_, err := ParseDuration(bad)
		assert.ErrorIs(t, err, ErrBadDuration, bad)
	}
}

func TestTruncateAndEscape(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab…", Truncate("abcdef", 3))
	assert.Equal(t, `\*bold\*`, EscapeMd("*bold*"))
}

func TestShuffleSlice_KeepsElements(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 6}
	ShuffleSlice(a)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, a)
}

func TestBuildFFmpegHeaders(t *testing.T) {
	out := BuildFFmpegHeaders(map[string]string{"user-agent": "ua/1", "x-custom": " v "})

	assert.Contains(t, out, "User-Agent: ua/1\r\n")
	assert.Contains(t, out, "X-Custom: v\r\n")
	assert.Contains(t, out, "Referer: https://www.youtube.com/\r\n")
	assert.Equal(t, 1, strings.Count(out, "User-Agent:"))

	// header lines come out sorted by name, whatever their values
	var keys []string
	for _, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		k, _, ok := strings.Cut(line, ": ")
		require.True(t, ok, line)
		keys = append(keys, k)
	}
	assert.IsIncreasing(t, keys)

	// a value that sorts before its own key must not break the order
	out = BuildFFmpegHeaders(map[string]string{"accept": "zzz", "accept-language": "aa"})
	assert.Less(t, strings.Index(out, "Accept: zzz"), strings.Index(out, "Accept-Language: aa"))
}
