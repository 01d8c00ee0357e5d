package voice

import (
	"context"
	"sync"
)

// Gate is a level-triggered event: Wait returns immediately while set and
// blocks while cleared.
type Gate struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

func NewGate(set bool) *Gate {
	g := &Gate{ch: make(chan struct{})}
	if set {
		g.set = true
		close(g.ch)
	}
	return g
}

func (g *Gate) Set() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.set {
		g.set = true
		close(g.ch)
	}
}

func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.set {
		g.set = false
		g.ch = make(chan struct{})
	}
}

func (g *Gate) IsSet() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.set
}

func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
