package player

import (
	"fmt"
	"math"
	"strings"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/utils"
)

const progressWidth = 12

func ProgressBar(width int, progress float64) string {
	if width <= 0 {
		return ""
	}
	progress = math.Max(0, math.Min(1, progress))
	dot := min(int(float64(width)*progress), width-1)

	var b strings.Builder
	for i := range width {
		if i == dot {
			b.WriteRune('🔘')
		} else {
			b.WriteRune('▬')
		}
	}
	return b.String()
}

// Fraction is how far pos is into t, from 0 to 1. Live tracks report 0.
func Fraction(pos float64, t media.Track) float64 {
	if t.IsLive || t.Duration <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, pos/t.Duration))
}

// FormatProgress renders "1:02 / 3:30 ▬▬🔘▬▬ 29%".
func FormatProgress(pos float64, t media.Track) string {
	elapsed := utils.PrettyTime(int(pos))
	if t.IsLive || t.Duration <= 0 {
		return elapsed + " / LIVE"
	}
	f := Fraction(pos, t)
	return fmt.Sprintf("%s / %s %s %d%%",
		elapsed, utils.PrettyTime(int(t.Duration)), ProgressBar(progressWidth, f), int(f*100))
}
