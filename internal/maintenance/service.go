// Package maintenance prunes old execution and playback history on a nightly
// cron schedule so the database file stays small on long-running installs.
package maintenance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

const (
	defaultSchedule  = "30 3 * * *"
	defaultRetention = 90 // days
)

type Config struct {
	Enabled       bool
	Schedule      string // cron spec; default "30 3 * * *"
	RetentionDays int    // history older than this is deleted; default 90
	Timezone      string // IANA TZ; empty = system local
}

// Store is the slice of the persistence API maintenance consumes.
type Store interface {
	PruneHistory(ctx context.Context, before time.Time) (int64, error)
}

type Service struct {
	cfg   Config
	log   logx.Logger
	store Store
	loc   *time.Location

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, store Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{cfg: cfg, log: log, store: store}
	s.loc = s.loadLocation()
	return s
}

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

func (s *Service) Start(ctx context.Context) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.c != nil {
		return nil
	}

	spec := strings.TrimSpace(s.cfg.Schedule)
	if spec == "" {
		spec = defaultSchedule
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(spec, s.runPrune); err != nil {
		return err
	}
	s.c = c
	c.Start()
	s.log.Info("maintenance started",
		logx.String("schedule", spec),
		logx.Int("retention_days", s.retentionDays()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("maintenance stopped")
}

func (s *Service) retentionDays() int {
	if s.cfg.RetentionDays > 0 {
		return s.cfg.RetentionDays
	}
	return defaultRetention
}

func (s *Service) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	before := time.Now().In(s.loc).AddDate(0, 0, -s.retentionDays())
	n, err := s.store.PruneHistory(ctx, before)
	if err != nil {
		s.log.Warn("history prune failed", logx.Err(err))
		return
	}
	s.log.Info("history pruned",
		logx.Int64("rows", n),
		logx.Time("before", before))
}
