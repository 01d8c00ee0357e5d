package player

import (
	"context"
	"errors"
	"sync"
)

// Registry owns the queue of every guild.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Queue
	create func(guildID string) *Queue
}

func NewRegistry(create func(guildID string) *Queue) *Registry {
	return &Registry{queues: make(map[string]*Queue), create: create}
}

func (r *Registry) GetOrCreate(guildID string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[guildID]; ok {
		return q
	}
	q := r.create(guildID)
	r.queues[guildID] = q
	return q
}

func (r *Registry) Peek(guildID string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queues[guildID]
}

// Teardown removes the guild's queue and closes it. The entry goes first so
// nothing reaches the queue while it shuts down.
func (r *Registry) Teardown(ctx context.Context, guildID string) error {
	r.mu.Lock()
	q, ok := r.queues[guildID]
	delete(r.queues, guildID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return q.Close(ctx)
}

// Retire is Teardown for a specific queue: the entry is only removed when
// it still points at q, but q is closed either way.
func (r *Registry) Retire(ctx context.Context, q *Queue) error {
	r.mu.Lock()
	if r.queues[q.GuildID()] == q {
		delete(r.queues, q.GuildID())
	}
	r.mu.Unlock()
	return q.Close(ctx)
}

// Close tears down every queue.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	qs := r.queues
	r.queues = make(map[string]*Queue)
	r.mu.Unlock()

	var errs []error
	for _, q := range qs {
		errs = append(errs, q.Close(ctx))
	}
	return errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
