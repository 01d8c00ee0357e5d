package player

import "github.com/sonroyaalmerol/hkbot/internal/media"

type lockState int

const (
	stateIdle lockState = iota
	stateResolving
	statePlaying
)

func (s lockState) String() string {
	switch s {
	case stateResolving:
		return "resolving"
	case statePlaying:
		return "playing"
	}
	return "idle"
}

// binding ties the lock to one play of a track. seq changes on every bind,
// so replaying the same track still yields a new binding.
type binding struct {
	track media.Track
	seq   uint64
}

// playbackLock says whether a resolve+play cycle is in flight. The queue
// mutex guards it.
type playbackLock struct {
	state lockState
	cur   binding
	seq   uint64
}

// tryResolve moves Idle to Resolving and reports whether it did.
func (l *playbackLock) tryResolve() bool {
	if l.state != stateIdle {
		return false
	}
	l.state = stateResolving
	return true
}

func (l *playbackLock) bind(t media.Track) binding {
	l.seq++
	l.state = statePlaying
	l.cur = binding{track: t, seq: l.seq}
	return l.cur
}

func (l *playbackLock) release() {
	l.state = stateIdle
	l.cur = binding{}
}

// unbind drops the binding but keeps the cycle going.
func (l *playbackLock) unbind() {
	l.state = stateResolving
	l.cur = binding{}
}

func (l *playbackLock) holds(b binding) bool {
	return l.state == statePlaying && l.cur.seq == b.seq
}

func (l *playbackLock) current() (media.Track, bool) {
	if l.state != statePlaying {
		return media.Track{}, false
	}
	return l.cur.track, true
}
