// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package scheduler drives periodic jobs at fixed intervals, gating every
// tick on a cross-worker leader lock so exactly one replica in a pool
// executes each occurrence (§4.1).
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grimm-is/netmond/internal/cache"
	"github.com/grimm-is/netmond/internal/logging"
	"github.com/grimm-is/netmond/internal/systemevent"
)

// JobFunc is a single job tick. It receives a ctx scoped to the tick and
// returns an error; the scheduler never lets a job error stop the loop
// (§7's catch-all policy).
type JobFunc func(ctx context.Context) error

// Job describes one registered periodic job.
type Job struct {
	ID       string
	Interval time.Duration
	// LockTTL is the cross-worker lock TTL. Normally slightly less than
	// Interval; left explicit per job so the MAC-discovery TTL/interval
	// mismatch (§9 open question) can be reproduced deliberately rather
	// than silently "fixed" by deriving it from Interval.
	LockTTL time.Duration
	Run     JobFunc
}

type entry struct {
	job     Job
	nextRun time.Time
	running sync.Mutex // held for the duration of a single tick; TryLock gates reentrancy
}

// Scheduler dispatches registered Jobs at their configured intervals,
// serialized per-process by entry.running and cross-process by the cache
// lock.
type Scheduler struct {
	cache  *cache.Client
	events *systemevent.Log
	logger *logging.Logger

	mu      sync.Mutex
	entries []*entry
	done    chan struct{}
}

// New creates a Scheduler. Register jobs with Register before calling
// Start.
func New(c *cache.Client, events *systemevent.Log, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		cache:  c,
		events: events,
		logger: logger.WithComponent("scheduler"),
		done:   make(chan struct{}),
	}
}

// Register adds a job. Jobs run for the first time immediately on Start.
func (s *Scheduler) Register(j Job) {
	if j.LockTTL <= 0 {
		j.LockTTL = j.Interval - j.Interval/10
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{job: j, nextRun: time.Time{}})
}

// Start runs the scheduling loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	now := time.Now()
	s.mu.Lock()
	for _, e := range s.entries {
		e.nextRun = now
	}
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if len(s.entries) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
				continue
			}
		}
		sort.Slice(s.entries, func(i, j int) bool {
			return s.entries[i].nextRun.Before(s.entries[j].nextRun)
		})
		next := s.entries[0].nextRun
		s.mu.Unlock()

		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		now := time.Now()
		s.mu.Lock()
		due := make([]*entry, 0, len(s.entries))
		for _, e := range s.entries {
			if e.nextRun.After(now) {
				break
			}
			due = append(due, e)
			e.nextRun = now.Add(e.job.Interval)
		}
		s.mu.Unlock()

		for _, e := range due {
			s.fire(ctx, e)
		}
	}
}

// Stop waits for the scheduling loop to exit. Callers must cancel the
// context passed to Start first.
func (s *Scheduler) Stop() {
	<-s.done
}

// fire gates a single tick on the per-process running flag, then the
// cross-worker cache lock, then invokes the job body with a catch-all
// recover/log so one bad job never stops the cycle (§7).
func (s *Scheduler) fire(ctx context.Context, e *entry) {
	if !e.running.TryLock() {
		s.logger.Warn("job still running, skipping tick", "job", e.job.ID)
		return
	}
	go func() {
		defer e.running.Unlock()
		s.runOnce(ctx, e.job)
	}()
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.ID, "panic", r)
			s.logEvent(ctx, "error", job.ID, "job panicked")
		}
	}()

	lockKey := cache.PrefixScheduler + job.ID
	acquired := true
	if s.cache != nil {
		ok, err := s.cache.TryLock(ctx, lockKey, job.LockTTL)
		if err != nil {
			// Fail open: cache unreachable, run anyway (§4.1, §7).
			s.logger.Warn("scheduler lock unavailable, running anyway", "job", job.ID, "error", err)
		} else {
			acquired = ok
		}
	}
	if !acquired {
		s.logger.Debug("lock held by another worker, skipping", "job", job.ID)
		return
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", "job", job.ID, "error", err, "elapsed", time.Since(start).String())
		s.logEvent(ctx, "warning", job.ID, err.Error())
		return
	}
	s.logger.Debug("job completed", "job", job.ID, "elapsed", time.Since(start).String())
}

func (s *Scheduler) logEvent(ctx context.Context, level, jobID, message string) {
	if s.events == nil {
		return
	}
	_ = s.events.Append(ctx, systemevent.Event{
		Level:     level,
		Source:    jobID,
		EventType: "scheduler_error",
		Message:   message,
	})
}
