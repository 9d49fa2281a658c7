// Package app wires moerduo's services together: config, logging, storage,
// the playback device, the scheduler core, and the supporting services.
package app

import (
	"context"
	"time"

	"github.com/Ali1995A/moerduo/internal/config"
	"github.com/Ali1995A/moerduo/internal/eventbus"
	"github.com/Ali1995A/moerduo/internal/maintenance"
	"github.com/Ali1995A/moerduo/internal/nowplaying"
	"github.com/Ali1995A/moerduo/internal/player"
	"github.com/Ali1995A/moerduo/internal/runtime/supervisor"
	"github.com/Ali1995A/moerduo/internal/scheduler"
	"github.com/Ali1995A/moerduo/internal/storage"
	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus

	store  storage.Store
	player *player.ExecPlayer

	sched *scheduler.Service
	nowp  *nowplaying.Service
	maint *maintenance.Service

	sup *supervisor.Supervisor
}

func New(cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "config"))

	cfgm := config.NewManager(cfgPath, bootLog)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage.
	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("path", cfg.Storage.Path))

	// Playback device.
	pl, err := player.NewExec(player.Config{Command: cfg.Player.Command},
		log.With(logx.String("comp", "player")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// Services.
	tick, err := config.ParseDurationOrDefault("scheduler.tick_interval",
		cfg.Scheduler.TickInterval, scheduler.DefaultTickInterval)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	schedSvc := scheduler.New(scheduler.Config{
		Enabled:      cfg.Scheduler.Enabled,
		TickInterval: tick,
		Timezone:     cfg.Scheduler.Timezone,
	}, store, pl, log.With(logx.String("comp", "scheduler")), bus)

	nowpSvc := nowplaying.New(bus, log.With(logx.String("comp", "nowplaying")))

	maintSvc := maintenance.New(maintenance.Config{
		Enabled:       cfg.Maintenance.Enabled,
		Schedule:      cfg.Maintenance.Schedule,
		RetentionDays: cfg.Maintenance.RetentionDays,
		Timezone:      cfg.Scheduler.Timezone,
	}, store, log.With(logx.String("comp", "maintenance")))

	a := &App{
		cfgm:   cfgm,
		logs:   logSvc,
		log:    log,
		bus:    bus,
		store:  store,
		player: pl,
		sched:  schedSvc,
		nowp:   nowpSvc,
		maint:  maintSvc,
	}
	cfgm.OnChange = a.applyConfig
	return a, nil
}

// Start launches the long-lived goroutines. It never blocks.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, a.log.With(logx.String("comp", "supervisor")))

	if err := a.maint.Start(ctx); err != nil {
		return err
	}

	a.sup.Go("nowplaying", a.nowp.Run)
	a.sup.GoRestart("config-watch", a.cfgm.Watch)
	if a.sched.Enabled() {
		a.sup.GoRestart("scheduler", a.sched.Run)
	} else {
		a.log.Info("scheduler disabled by config")
	}

	a.log.Info("moerduo started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("shutting down")

	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			a.log.Warn("supervisor stop timed out", logx.Err(err))
		}
	}
	a.maint.Stop(ctx)
	a.player.Stop()

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("shutdown complete")
	return a.logs.Close()
}

// NowPlaying exposes the reporting snapshot for the GUI bridge.
func (a *App) NowPlaying() nowplaying.Snapshot { return a.nowp.Snapshot() }

// PlayerStatus exposes the device snapshot for the GUI bridge.
func (a *App) PlayerStatus() player.Status { return a.player.Status() }

// applyConfig handles a config file reload. Logging changes apply live;
// anything else would need a restart, which is logged so the operator knows.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))
	a.log.Info("logging config applied; other sections take effect on restart")
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// StopTimeout bounds graceful shutdown in main.
const StopTimeout = 10 * time.Second
