package player

import "github.com/sonroyaalmerol/hkbot/internal/utils"

// Deque is a FIFO with push-front. It is not safe for concurrent use; the
// queue guards it with its own mutex.
type Deque[T any] struct {
	items []T
}

func (d *Deque[T]) PushBack(v ...T) { d.items = append(d.items, v...) }

func (d *Deque[T]) PushFront(v ...T) {
	d.items = append(append(make([]T, 0, len(v)+len(d.items)), v...), d.items...)
}

func (d *Deque[T]) PopFront() (T, bool) {
	var zero T
	if len(d.items) == 0 {
		return zero, false
	}
	v := d.items[0]
	d.items[0] = zero
	d.items = d.items[1:]
	return v, true
}

func (d *Deque[T]) Len() int { return len(d.items) }

// Snapshot returns a copy of the items in order.
func (d *Deque[T]) Snapshot() []T {
	return append([]T(nil), d.items...)
}

// Remove deletes the item at index i (0-based).
func (d *Deque[T]) Remove(i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(d.items) {
		return zero, false
	}
	v := d.items[i]
	d.items = append(d.items[:i], d.items[i+1:]...)
	return v, true
}

// Drop discards up to n items from the front and reports how many went.
func (d *Deque[T]) Drop(n int) int {
	n = min(max(n, 0), len(d.items))
	clear(d.items[:n])
	d.items = d.items[n:]
	return n
}

func (d *Deque[T]) Clear() int {
	n := len(d.items)
	d.items = nil
	return n
}

func (d *Deque[T]) Shuffle() { utils.ShuffleSlice(d.items) }

// looped wraps a dequeue so that, while on() holds, every popped item is
// re-appended to the tail before it is returned.
func looped[T any](d *Deque[T], on func() bool) func() (T, bool) {
	return func() (T, bool) {
		v, ok := d.PopFront()
		if ok && on() {
			d.PushBack(v)
		}
		return v, ok
	}
}
