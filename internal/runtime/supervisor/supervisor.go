package supervisor

import (
	"context"
	"sync"
	"time"

	logx "github.com/Ali1995A/moerduo/pkg/logx"
)

// Supervisor manages the app's long-lived goroutines under a shared context:
// named goroutines, panic recovery with stack logging, optional restart with
// backoff, and a graceful Stop that waits with a deadline.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger
	wg     sync.WaitGroup
}

func New(parent context.Context, log logx.Logger) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel, log: log}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Go runs fn once in a named goroutine. A panic is recovered and logged;
// it does not take down the process.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.runOnce(name, fn)
		if err != nil && s.ctx.Err() == nil {
			s.log.Warn("goroutine exited with error", logx.String("name", name), logx.Err(err))
		}
	}()
}

// GoRestart runs fn in a named goroutine and restarts it with exponential
// backoff whenever it returns an error or panics. A clean (nil) exit or
// context cancellation stops the restart loop.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	const (
		backoffMin = time.Second
		backoffMax = time.Minute
	)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		backoff := backoffMin
		for {
			err := s.runOnce(name, fn)
			if s.ctx.Err() != nil {
				return
			}
			if err == nil {
				return
			}
			s.log.Warn("goroutine restarting after failure",
				logx.String("name", name),
				logx.Duration("backoff", backoff),
				logx.Err(err))

			t := time.NewTimer(backoff)
			select {
			case <-s.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
	}()
}

func (s *Supervisor) runOnce(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("goroutine panicked",
				logx.String("name", name),
				logx.Any("panic", p),
				logx.Stack(logx.CaptureStack()))
			err = &panicError{name: name, value: p}
		}
	}()
	return fn(s.ctx)
}

// Stop cancels the shared context and waits for all goroutines, bounded by
// ctx's deadline.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type panicError struct {
	name  string
	value any
}

func (e *panicError) Error() string { return "panic in " + e.name }
