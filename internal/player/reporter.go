package player

import (
	"context"
	"log/slog"
	"time"
)

// Reporter keeps one status message in step with playback. It stops when
// Render reports the binding is gone or when an edit fails.
type Reporter struct {
	Interval time.Duration
	Message  Message
	// Wait blocks while playback is paused.
	Wait   func(ctx context.Context) error
	Render func() (Notice, bool)
	Logger *slog.Logger
}

func (r *Reporter) Run(ctx context.Context) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if r.Wait != nil {
			if err := r.Wait(ctx); err != nil {
				return
			}
		}
		n, ok := r.Render()
		if !ok {
			log.Debug("progress reporter stopped, track changed")
			return
		}
		if err := r.Message.Edit(ctx, n); err != nil {
			if ctx.Err() == nil {
				log.Debug("progress reporter stopped, edit failed", "err", err)
			}
			return
		}
	}
}
