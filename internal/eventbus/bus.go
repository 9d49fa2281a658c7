package eventbus

import (
	"sync"
	"time"
)

// Event is the in-memory signal that decouples the scheduling core from the
// reporting side (now-playing view, GUI bridge). Data holds one of the typed
// payloads in events.go.
//
// Publish never blocks: subscribers receive on buffered channels and a full
// buffer drops the event for that subscriber.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	// Subscribe registers a buffered receiver (buffer is clamped to >= 1).
	// The returned unsubscribe func is idempotent and closes the channel.
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns the in-process fanout bus. It owns no goroutines.
func New() Bus {
	return &fanout{subs: map[int]chan Event{}}
}

type fanout struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func (b *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot under the read lock; sends happen outside it.
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		deliver(ch, e)
	}
}

// deliver sends without blocking. An unsubscribe racing with Publish can
// close the channel mid-send; the recover absorbs that.
func deliver(ch chan Event, e Event) {
	defer func() { _ = recover() }()
	select {
	case ch <- e:
	default:
	}
}

func (b *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
