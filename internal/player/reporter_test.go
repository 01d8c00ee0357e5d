package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/hkbot/internal/media"
	"github.com/sonroyaalmerol/hkbot/internal/testutil"
)

type fakeMessage struct {
	mu      sync.Mutex
	edits   []Notice
	failAt  int
	deleted bool
}

func (m *fakeMessage) Edit(ctx context.Context, n Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt > 0 && len(m.edits)+1 >= m.failAt {
		return errors.New("unknown message")
	}
	m.edits = append(m.edits, n)
	return nil
}

func (m *fakeMessage) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = true
	return nil
}

func (m *fakeMessage) editCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edits)
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []Notice
	msgs []*fakeMessage
}

func (p *fakePublisher) Send(ctx context.Context, n Notice) (Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := &fakeMessage{}
	p.sent = append(p.sent, n)
	p.msgs = append(p.msgs, m)
	return m, nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *fakePublisher) message(i int) *fakeMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msgs[i]
}

func runReporter(r *Reporter) (context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	return cancel, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}

func TestReporter_StopsWhenBindingChanges(t *testing.T) {
	testutil.VerifyNoLeaks(t)

	var ticks atomic.Int32
	msg := &fakeMessage{}
	r := &Reporter{
		Interval: 5 * time.Millisecond,
		Message:  msg,
		Render: func() (Notice, bool) {
			return Notice{Kind: NoticeProgress}, ticks.Add(1) <= 3
		},
	}
	cancel, done := runReporter(r)
	defer cancel()

	waitDone(t, done)
	assert.Equal(t, 3, msg.editCount())
}

func TestReporter_StopsWhenEditFails(t *testing.T) {
	testutil.VerifyNoLeaks(t)

	msg := &fakeMessage{failAt: 2}
	r := &Reporter{
		Interval: 5 * time.Millisecond,
		Message:  msg,
		Render:   func() (Notice, bool) { return Notice{}, true },
	}
	cancel, done := runReporter(r)
	defer cancel()

	waitDone(t, done)
	assert.Equal(t, 1, msg.editCount())
}

func TestReporter_WaitsWhilePaused(t *testing.T) {
	testutil.VerifyNoLeaks(t)

	gate := make(chan struct{})
	msg := &fakeMessage{}
	r := &Reporter{
		Interval: 5 * time.Millisecond,
		Message:  msg,
		Wait: func(ctx context.Context) error {
			select {
			case <-gate:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		Render: func() (Notice, bool) { return Notice{}, true },
	}
	cancel, done := runReporter(r)

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, msg.editCount())

	close(gate)
	require.Eventually(t, func() bool { return msg.editCount() > 0 }, time.Second, time.Millisecond)

	cancel()
	waitDone(t, done)
}

func TestQueue_PublishesAndReportsPerTrack(t *testing.T) {
	testutil.VerifyNoLeaks(t)
	pub := &fakePublisher{}
	q, v := newTestQueue(t, nil, Options{Publisher: pub, ProgressInterval: 5 * time.Millisecond})

	_, err := q.Put(partial("a"), partial("b"))
	require.NoError(t, err)
	v.next(t)

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, time.Millisecond)
	first := pub.message(0)
	require.Eventually(t, func() bool { return first.editCount() >= 2 }, time.Second, time.Millisecond)

	v.finish()
	assert.Equal(t, "b", v.next(t).ID)
	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, time.Millisecond)

	stale := first.editCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stale, first.editCount(), "old reporter keeps editing")
	require.Eventually(t, func() bool { return pub.message(1).editCount() > 0 }, time.Second, time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, NoticeNowPlaying, pub.sent[0].Kind)
	assert.Equal(t, "a", pub.sent[0].Track.ID)
	assert.Equal(t, 1, pub.sent[0].Pending)
	assert.Equal(t, "b", pub.sent[1].Track.ID)
}

func TestQueue_NilMessageSkipsReporter(t *testing.T) {
	testutil.VerifyNoLeaks(t)
	q, v := newTestQueue(t, nil, Options{Publisher: silentPublisher{}, ProgressInterval: time.Millisecond})

	_, err := q.Put(partial("a"))
	require.NoError(t, err)
	v.next(t)
	v.finish()
	require.Eventually(t, idle(q), time.Second, time.Millisecond)
}

func TestQueue_CloseDeletesNowPlaying(t *testing.T) {
	testutil.VerifyNoLeaks(t)
	pub := &fakePublisher{}
	q, v := newTestQueue(t, nil, Options{Publisher: pub, ProgressInterval: 5 * time.Millisecond})

	_, err := q.Put(partial("a"))
	require.NoError(t, err)
	v.next(t)
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, q.Close(context.Background()))
	m := pub.message(0)
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.True(t, m.deleted)
}

type silentPublisher struct{}

func (silentPublisher) Send(ctx context.Context, n Notice) (Message, error) { return nil, nil }

func TestFormatProgress(t *testing.T) {
	tr := media.Track{Duration: 200}
	assert.Equal(t, "1:40 / 3:20 ▬▬▬▬▬▬🔘▬▬▬▬▬ 50%", FormatProgress(100, tr))
	assert.Equal(t, "0:00 / 3:20 🔘▬▬▬▬▬▬▬▬▬▬▬ 0%", FormatProgress(-5, tr))
	assert.Contains(t, FormatProgress(500, tr), "100%")
	assert.Equal(t, "0:42 / LIVE", FormatProgress(42, media.Track{IsLive: true}))

	assert.Empty(t, ProgressBar(0, 0.5))
	assert.Equal(t, "▬▬🔘", ProgressBar(3, 1))
}
