package resolver

import (
	"regexp"
	"strings"
)

var (
	videoPattern    = regexp.MustCompile(`^(?:https?://)?(?:www\.)?(?:youtu\.be/|youtube\.com/(?:embed/|v/|watch\?v=|watch\?.+&v=))((\w|-){11})(?:\S+)?$`)
	playlistPattern = regexp.MustCompile(`^.*(youtu.be/|list=)([^#&?]*).*`)
)

func isVideo(q string) bool    { return videoPattern.MatchString(q) }
func isPlaylist(q string) bool { return playlistPattern.MatchString(q) }

func isURL(q string) bool {
	return strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://")
}

// videoID extracts the 11 character id from a VIDEO match.
func videoID(q string) string {
	m := videoPattern.FindStringSubmatch(q)
	if m == nil {
		return ""
	}
	return m[1]
}
