// Package scheduler drives the cooperative cycle loop.
package scheduler

import (
	"context"
	"time"

	"conductor/internal/logger"
)

// CycleScheduler runs a task, then sleeps for Interval minus the time the
// task took, until its context is done. There is no overlap between runs.
type CycleScheduler struct {
	Interval time.Duration
	Name     string

	ctx     context.Context
	nowFn   func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) bool
}

func NewCycleScheduler(ctx context.Context, name string, interval time.Duration) *CycleScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CycleScheduler{
		Interval: interval,
		Name:     name,
		ctx:      ctx,
		nowFn:    time.Now,
		sleepFn:  sleep,
	}
}

// NextDelay is the wait before the next run: interval - elapsed, floored at 0.
func NextDelay(interval, elapsed time.Duration) time.Duration {
	if wait := interval - elapsed; wait > 0 {
		return wait
	}
	return 0
}

// Start blocks until the context is done.
func (s *CycleScheduler) Start(task func(ctx context.Context)) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("scheduler %s: task is nil, exit", s.Name)
		return
	}
	if s.Interval < 0 {
		logger.Warnf("scheduler %s: negative interval=%s, clamp to 0", s.Name, s.Interval)
		s.Interval = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.sleepFn == nil {
		s.sleepFn = sleep
	}
	logger.Infof("scheduler %s: started interval=%s", s.Name, s.Interval)
	for runs := 1; ; runs++ {
		if s.ctx.Err() != nil {
			logger.Infof("scheduler %s: ctx done after %d runs, exit", s.Name, runs-1)
			return
		}
		started := s.nowFn()
		task(s.ctx)
		elapsed := s.nowFn().Sub(started)
		wait := NextDelay(s.Interval, elapsed)
		logger.Debugf("scheduler %s: run %d took %s, next in %s", s.Name, runs, elapsed.Truncate(time.Millisecond), wait.Truncate(time.Second))
		if !s.sleepFn(s.ctx, wait) {
			logger.Infof("scheduler %s: ctx done after %d runs, exit", s.Name, runs)
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
