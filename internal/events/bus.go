// ABOUTME: Typed in-process event bus for value, tracker and refresh events.
// ABOUTME: Delivery is synchronous on the publisher's goroutine, in subscribe order.
package events

import (
	"sync"

	"github.com/harperreed/tracker/internal/metrics"
	"github.com/harperreed/tracker/internal/models"
)

// ValueUpdate announces a new, changed or dropped value record.
type ValueUpdate struct {
	Context  models.ValuesContext
	MetricID string
	Value    models.TrackerValue
	// Drop removes the record instead of upserting it.
	Drop bool
	// SkipRecent keeps the update out of the recently used list.
	SkipRecent bool
}

// Refresh asks consumers to drop cached values. No contexts means all.
type Refresh struct {
	Contexts []models.ValuesContext
}

// Includes reports whether the refresh applies to vc.
func (r Refresh) Includes(vc models.ValuesContext) bool {
	if len(r.Contexts) == 0 {
		return true
	}
	for _, c := range r.Contexts {
		if c == vc {
			return true
		}
	}
	return false
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Topic is a single event stream.
type Topic[T any] struct {
	name   string
	mu     sync.Mutex
	subs   []subscriber[T]
	nextID int
	closed bool
}

func newTopic[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

// Subscribe registers fn and returns a func that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return func() {}
	}
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subs {
				if s.id == id {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers v to every current subscriber. Handlers may subscribe
// or publish again without deadlocking.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	subs := append([]subscriber[T](nil), t.subs...)
	t.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(t.name).Inc()
	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (t *Topic[T]) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.subs = nil
}

// Bus groups the topics shared by trackers, values and views.
type Bus struct {
	ValuesChanged  *Topic[[]ValueUpdate]
	TrackerChanged *Topic[[]models.Tracker]
	TrackerRemoved *Topic[models.Tracker]
	Refresh        *Topic[Refresh]
}

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{
		ValuesChanged:  newTopic[[]ValueUpdate]("values_changed"),
		TrackerChanged: newTopic[[]models.Tracker]("tracker_changed"),
		TrackerRemoved: newTopic[models.Tracker]("tracker_removed"),
		Refresh:        newTopic[Refresh]("refresh"),
	}
}

// Close drops all subscribers; later publishes are ignored.
func (b *Bus) Close() {
	b.ValuesChanged.close()
	b.TrackerChanged.close()
	b.TrackerRemoved.close()
	b.Refresh.close()
}
