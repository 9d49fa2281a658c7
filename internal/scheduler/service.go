package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ali1995A/moerduo/internal/eventbus"
	"github.com/Ali1995A/moerduo/internal/player"
	"github.com/Ali1995A/moerduo/internal/storage"
	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

// DefaultTickInterval is the evaluation cadence. The 2-minute firing window
// in the matcher assumes ticks arrive at least this often.
const DefaultTickInterval = 30 * time.Second

type Config struct {
	Enabled      bool
	TickInterval time.Duration // 0 means DefaultTickInterval
	Timezone     string        // IANA TZ, e.g. "Asia/Shanghai"; empty = system local
}

// Store is the slice of the persistence API the scheduler consumes.
// *storage* provides the SQLite implementation.
type Store interface {
	ListEnabledTasks(ctx context.Context) ([]storage.ScheduledTask, error)
	CountExecutions(ctx context.Context, taskID int64) (int, error)
	CountExecutionsSince(ctx context.Context, taskID int64, since time.Time) (int, error)
	InsertExecutionStart(ctx context.Context, taskID int64, at time.Time) (int64, error)
	FinishExecution(ctx context.Context, recordID int64, status storage.ExecStatus, took time.Duration) error
	ListPlaylistItems(ctx context.Context, playlistID int64) ([]storage.PlaylistItem, error)
	GetPlaylist(ctx context.Context, playlistID int64) (storage.Playlist, error)
	MarkPlayed(ctx context.Context, audioID int64, at time.Time) error
	AppendPlayback(ctx context.Context, e storage.PlaybackEntry) error
}

// Service is the scheduling and playback-orchestration engine: a polling
// loop that evaluates enabled tasks against wall-clock time and runs the
// playback sequencer for each task that fires.
type Service struct {
	cfg    Config
	log    logx.Logger
	bus    eventbus.Bus
	store  Store
	player player.Player
	loc    *time.Location

	// Injected for tests; real clock/sleep in production.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// runMu makes guard-check + started-record insert one critical section.
	// Cycles are serial today, but the guard stays correct if concurrency is
	// ever introduced.
	runMu sync.Mutex

	// storeWarn throttles repeated store-failure warnings; a broken database
	// file would otherwise log every tick.
	storeWarn *rate.Limiter
}

func New(cfg Config, store Store, pl player.Player, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:       cfg,
		log:       log,
		bus:       bus,
		store:     store,
		player:    pl,
		now:       time.Now,
		sleep:     sleepCtx,
		storeWarn: rate.NewLimiter(rate.Every(5*time.Minute), 1),
	}
	s.loc = s.loadLocation()
	return s
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

func (s *Service) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Run is the scheduler loop. It blocks until ctx is cancelled and is meant
// to be started under the supervisor so the caller never blocks.
func (s *Service) Run(ctx context.Context) error {
	tick := s.cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	s.log.Info("scheduler started",
		logx.Duration("tick", tick),
		logx.String("tz", s.loc.String()))

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-t.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle is one evaluation pass: fetch enabled tasks in priority order and
// evaluate each. Store errors abandon the cycle; the next tick proceeds
// normally. Task runs are strictly sequential within a cycle.
func (s *Service) runCycle(ctx context.Context) {
	now := s.now().In(s.loc)

	tasks, err := s.store.ListEnabledTasks(ctx)
	if err != nil {
		s.warnStore("listing enabled tasks failed", err)
		return
	}
	s.log.Trace("evaluation cycle",
		logx.Int("tasks", len(tasks)),
		logx.Time("now", now))

	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		s.evalTask(ctx, now, tasks[i])
	}
}

// evalTask applies the matcher and the execution guard to one task, and runs
// the sequencer synchronously when both allow it. Failures here never affect
// other tasks or future ticks.
func (s *Service) evalTask(ctx context.Context, now time.Time, t storage.ScheduledTask) {
	if !windowMatches(t.Hour, t.Minute, now.Hour(), now.Minute()) {
		return
	}

	log := s.log.With(logx.Int64("task_id", t.ID), logx.String("task", t.Name))

	executedEver := false
	if t.RepeatMode == storage.RepeatOnce {
		n, err := s.store.CountExecutions(ctx, t.ID)
		if err != nil {
			s.warnStore("execution count lookup failed", err)
			return
		}
		executedEver = n > 0
	}

	ok, err := dayMatches(t.RepeatMode, t.CustomDays, now.Weekday(), executedEver)
	if err != nil {
		log.Warn("malformed custom day set, treating as no match", logx.Err(err))
		return
	}
	if !ok {
		log.Debug("day policy does not match",
			logx.String("repeat_mode", t.RepeatMode),
			logx.Int("weekday", int(now.Weekday())))
		return
	}

	s.runMu.Lock()
	ran, err := s.ranToday(ctx, t.ID, now)
	if err != nil {
		s.runMu.Unlock()
		s.warnStore("execution guard lookup failed", err)
		return
	}
	if ran {
		s.runMu.Unlock()
		log.Debug("already executed today, skipping")
		return
	}
	recID, err := s.store.InsertExecutionStart(ctx, t.ID, now)
	s.runMu.Unlock()
	if err != nil {
		s.warnStore("recording execution start failed", err)
		return
	}

	log.Info("firing scheduled task",
		logx.Int("hour", t.Hour),
		logx.Int("minute", t.Minute),
		logx.Int64("playlist_id", t.PlaylistID))
	s.publish(eventbus.EventTaskStarted, eventbus.TaskEvent{
		TaskID: t.ID, TaskName: t.Name, PlaylistID: t.PlaylistID, RecordID: recID,
	})

	started := s.now()
	runErr := s.runPlaylist(ctx, t)
	took := s.now().Sub(started)

	// The run may have ended because ctx was cancelled at shutdown; the
	// status write must still land or the record stays started forever.
	finCtx, cancelFin := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancelFin()

	if runErr != nil {
		if IsConfigError(runErr) {
			log.Warn("task failed: playlist is empty", logx.Err(runErr))
		} else {
			log.Error("task run failed", logx.Err(runErr), logx.Duration("took", took))
		}
		if err := s.store.FinishExecution(finCtx, recID, storage.StatusFailed, took); err != nil {
			s.warnStore("recording execution failure failed", err)
		}
		s.publish(eventbus.EventTaskFailed, eventbus.TaskEvent{
			TaskID: t.ID, TaskName: t.Name, PlaylistID: t.PlaylistID,
			RecordID: recID, Took: took, Error: runErr.Error(),
		})
		return
	}

	if err := s.store.FinishExecution(finCtx, recID, storage.StatusCompleted, took); err != nil {
		s.warnStore("recording execution completion failed", err)
	}
	log.Info("task completed", logx.Duration("took", took))
	s.publish(eventbus.EventTaskCompleted, eventbus.TaskEvent{
		TaskID: t.ID, TaskName: t.Name, PlaylistID: t.PlaylistID,
		RecordID: recID, Took: took,
	})
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

func (s *Service) warnStore(msg string, err error) {
	if s.storeWarn.Allow() {
		s.log.Warn(msg, logx.Err(err))
	} else {
		s.log.Debug(msg, logx.Err(err))
	}
}
