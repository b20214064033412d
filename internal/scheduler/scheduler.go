// Package scheduler fires recurring research runs from configured cron
// schedules. Reports land in the run archive; the scheduler itself keeps no
// state beyond last-fire times.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/research"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/store"
)

// Runner is the slice of the research graph the scheduler needs.
type Runner interface {
	Run(ctx context.Context, topic string) (*research.Result, error)
}

type entry struct {
	topic   string
	cron    string
	lastRun *time.Time
}

// Scheduler ticks over the configured schedules and runs due topics. Each
// due run fires on its own goroutine so a slow topic never delays the rest.
type Scheduler struct {
	runner  Runner
	archive *store.Store
	entries []entry
	tick    time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// New builds the scheduler from configuration. Invalid or incomplete
// schedule entries were already rejected by config validation.
func New(schedules []config.Schedule, runner Runner, archive *store.Store) *Scheduler {
	entries := make([]entry, 0, len(schedules))
	for _, sch := range schedules {
		entries = append(entries, entry{topic: sch.Topic, cron: sch.Cron})
	}
	return &Scheduler{
		runner:  runner,
		archive: archive,
		entries: entries,
		tick:    time.Minute,
		logger:  log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

// Start blocks, firing due schedules each tick, until ctx is cancelled. It
// waits for in-flight runs before returning; cancellation reaches them
// through ctx.
func (s *Scheduler) Start(ctx context.Context) {
	defer s.wg.Wait()

	if len(s.entries) == 0 {
		s.logger.Printf("no schedules configured")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDue(ctx)
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := time.Now()
	for i := range s.entries {
		e := &s.entries[i]
		if !isDue(e.cron, e.lastRun, now) {
			continue
		}
		fired := now
		e.lastRun = &fired

		s.logger.Printf("schedule due, starting run for %q", e.topic)
		s.wg.Add(1)
		go func(topic string) {
			defer s.wg.Done()
			res, err := s.runner.Run(ctx, topic)
			if err != nil {
				s.logger.Printf("scheduled run for %q failed: %v", topic, err)
				return
			}
			if s.archive != nil {
				if err := s.archive.SaveRun(ctx, res); err != nil {
					s.logger.Printf("archive scheduled run %s: %v", res.RunID, err)
				}
			}
		}(e.topic)
	}
}

// isDue reports whether a schedule should fire at now. Supports "@daily",
// "@hourly", and 5-field cron expressions; an unparsable spec degrades to
// daily rather than never firing.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		return last == nil || now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		return last == nil || now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			return last == nil || now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
