// Package nowplaying keeps an in-memory view of what the scheduler is doing:
// the item currently playing and a bounded ring of recent playback and task
// events. The GUI layer reads it via Snapshot; nothing here touches the
// database.
package nowplaying

import (
	"context"
	"sync"
	"time"

	"github.com/Ali1995A/moerduo/internal/eventbus"
	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

const historyLimit = 100

// Entry is one remembered event.
type Entry struct {
	Type     string                  `json:"type"`
	At       time.Time               `json:"at"`
	Playback *eventbus.PlaybackEvent `json:"playback,omitempty"`
	Task     *eventbus.TaskEvent     `json:"task,omitempty"`
}

// Snapshot is a point-in-time view for the reporting surface.
type Snapshot struct {
	Current *eventbus.PlaybackEvent `json:"current,omitempty"`
	Recent  []Entry                 `json:"recent"`
}

type Service struct {
	log logx.Logger
	bus eventbus.Bus

	mu      sync.Mutex
	current *eventbus.PlaybackEvent
	recent  []Entry
}

func New(bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, bus: bus}
}

// Run consumes bus events until ctx is cancelled. Meant to be started under
// the supervisor.
func (s *Service) Run(ctx context.Context) error {
	ch, unsub := s.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(e)
		}
	}
}

func (s *Service) handle(e eventbus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case eventbus.EventPlaybackItem:
		pe, ok := e.Data.(eventbus.PlaybackEvent)
		if !ok {
			return
		}
		s.current = &pe
		s.remember(Entry{Type: e.Type, At: e.Time, Playback: &pe})
	case eventbus.EventTaskStarted, eventbus.EventTaskCompleted, eventbus.EventTaskFailed:
		te, ok := e.Data.(eventbus.TaskEvent)
		if !ok {
			return
		}
		if e.Type != eventbus.EventTaskStarted {
			// The run ended; nothing is playing on the scheduler's behalf.
			s.current = nil
		}
		s.remember(Entry{Type: e.Type, At: e.Time, Task: &te})
	}
}

// remember appends to the ring. Caller holds s.mu.
func (s *Service) remember(en Entry) {
	s.recent = append(s.recent, en)
	if len(s.recent) > historyLimit {
		s.recent = s.recent[len(s.recent)-historyLimit:]
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Recent: make([]Entry, len(s.recent))}
	copy(snap.Recent, s.recent)
	if s.current != nil {
		cp := *s.current
		snap.Current = &cp
	}
	return snap
}
