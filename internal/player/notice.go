package player

import (
	"context"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

type NoticeKind int

const (
	NoticeNowPlaying NoticeKind = iota
	NoticeProgress
)

// Notice is the state a status message shows.
type Notice struct {
	Kind     NoticeKind
	Track    media.Track
	Position float64
	Progress string
	Pending  int
	Looping  bool
	Paused   bool
}

// Publisher sends status messages to the channel a queue is bound to.
// Send may return a nil Message when nothing was published.
type Publisher interface {
	Send(ctx context.Context, n Notice) (Message, error)
}

type Message interface {
	Edit(ctx context.Context, n Notice) error
	Delete(ctx context.Context) error
}
