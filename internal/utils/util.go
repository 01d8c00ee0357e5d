package utils

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

var ErrBadDuration = errors.New("bad duration")

func EscapeMd(s string) string {
	r := strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "|", "\\|")
	return r.Replace(s)
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func PrettyTime(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

var reDur = regexp.MustCompile(`(?i)^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration accepts "90", "1:30", "1:02:03" and "1h2m3s" and returns
// seconds.
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadDuration
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, ErrBadDuration
		}
		return n, nil
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return 0, ErrBadDuration
		}
		total := 0
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, ErrBadDuration
			}
			total = total*60 + n
		}
		return total, nil
	}
	m := reDur.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrBadDuration
	}
	return Atoi(m[1])*3600 + Atoi(m[2])*60 + Atoi(m[3]), nil
}

func Atoi(s string) int {
	if s == "" {
		return 0
	}
	v, _ := strconv.Atoi(s)
	return v
}

func ShuffleSlice[T any](a []T) {
	rand.Shuffle(len(a), func(i, j int) { a[i], a[j] = a[j], a[i] })
}

func Clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
