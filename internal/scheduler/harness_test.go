package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Ali1995A/moerduo/internal/eventbus"
	"github.com/Ali1995A/moerduo/internal/storage"
	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

// fakeClock backs the injected now/sleep pair: sleeping advances the clock
// instantly, so sequencer timing is deterministic and tests run in
// microseconds of wall time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return nil
}

type fakeExec struct {
	id     int64
	taskID int64
	at     time.Time
	status storage.ExecStatus
	took   time.Duration
}

// fakeStore is an in-memory Store for scheduler tests.
type fakeStore struct {
	mu        sync.Mutex
	tasks     []storage.ScheduledTask
	playlists map[int64]storage.Playlist
	items     map[int64][]storage.PlaylistItem
	execs     []fakeExec
	nextID    int64
	played    []int64
	playback  []storage.PlaybackEntry

	listTasksErr error
	listItemsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		playlists: map[int64]storage.Playlist{},
		items:     map[int64][]storage.PlaylistItem{},
	}
}

func (f *fakeStore) ListEnabledTasks(ctx context.Context) ([]storage.ScheduledTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listTasksErr != nil {
		return nil, f.listTasksErr
	}
	return append([]storage.ScheduledTask(nil), f.tasks...), nil
}

func (f *fakeStore) CountExecutions(ctx context.Context, taskID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.execs {
		if e.taskID == taskID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountExecutionsSince(ctx context.Context, taskID int64, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.execs {
		if e.taskID == taskID && !e.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertExecutionStart(ctx context.Context, taskID int64, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.execs = append(f.execs, fakeExec{id: f.nextID, taskID: taskID, at: at, status: storage.StatusStarted})
	return f.nextID, nil
}

func (f *fakeStore) FinishExecution(ctx context.Context, recordID int64, status storage.ExecStatus, took time.Duration) error {
	// database/sql rejects statements on a done context before touching the DB.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.execs {
		if f.execs[i].id == recordID {
			f.execs[i].status = status
			f.execs[i].took = took
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) ListPlaylistItems(ctx context.Context, playlistID int64) ([]storage.PlaylistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listItemsErr != nil {
		return nil, f.listItemsErr
	}
	return append([]storage.PlaylistItem(nil), f.items[playlistID]...), nil
}

func (f *fakeStore) GetPlaylist(ctx context.Context, playlistID int64) (storage.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[playlistID]
	if !ok {
		return storage.Playlist{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) MarkPlayed(ctx context.Context, audioID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, audioID)
	return nil
}

func (f *fakeStore) AppendPlayback(ctx context.Context, e storage.PlaybackEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playback = append(f.playback, e)
	return nil
}

func (f *fakeStore) executions() []fakeExec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeExec(nil), f.execs...)
}

func (f *fakeStore) playedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.played...)
}

// fakePlayer records every device interaction. Setting stopAfterPlays > 0
// simulates an external Stop issued right after the Nth Play.
type fakePlayer struct {
	mu        sync.Mutex
	volumes   []float64
	playPaths []string
	playIDs   []int64
	stopCh    chan struct{}
	stopCalls int
	scheduled []bool
	queue     []int64

	playErr        error
	stopAfterPlays int
}

func (p *fakePlayer) SetQueue(audioIDs []int64, autoPlay bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append([]int64(nil), audioIDs...)
}

func (p *fakePlayer) SetScheduled(scheduled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = append(p.scheduled, scheduled)
}

func (p *fakePlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumes = append(p.volumes, v)
}

func (p *fakePlayer) Play(path string, audioID int64, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.playPaths = append(p.playPaths, path)
	p.playIDs = append(p.playIDs, audioID)
	p.stopCh = make(chan struct{})
	if p.stopAfterPlays > 0 && len(p.playPaths) >= p.stopAfterPlays {
		close(p.stopCh)
	}
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
}

func (p *fakePlayer) StopSignal() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh == nil {
		p.stopCh = make(chan struct{})
	}
	return p.stopCh
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.playPaths)
}

func (p *fakePlayer) volumeLog() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.volumes...)
}

func (p *fakePlayer) stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCalls
}

func newTestService(st *fakeStore, p *fakePlayer, clk *fakeClock, bus eventbus.Bus) *Service {
	s := New(Config{Enabled: true}, st, p, logx.Nop(), bus)
	s.now = clk.now
	s.sleep = clk.sleep
	return s
}

func mins(n int64) *int64 { return &n }
