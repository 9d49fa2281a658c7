package scheduler

import (
	"context"
	"time"
)

// startOfDay returns midnight of t's calendar day in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ranToday reports whether the task already has an execution record (any
// status) since local midnight. Together with the "once" day policy this
// yields the firing invariant: at most once per calendar day, and a once
// task at most once ever.
//
// Callers must hold s.runMu across this check and the subsequent
// started-record insert so guard + insert form one critical section.
func (s *Service) ranToday(ctx context.Context, taskID int64, now time.Time) (bool, error) {
	n, err := s.store.CountExecutionsSince(ctx, taskID, startOfDay(now))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
