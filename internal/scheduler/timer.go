package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"opentracker/internal/logger"
)

// Scheduler drives a recurring background job. Both implementations run
// the task on their own goroutine; Stop halts future runs but does not
// interrupt one already in flight.
type Scheduler interface {
	Start(task func() error) error
	Stop() error
}

// FixedRateScheduler fires at a constant interval, used for the
// foreground-window sampling loop.
type FixedRateScheduler struct {
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool
}

func NewFixedRateScheduler(interval time.Duration) *FixedRateScheduler {
	return &FixedRateScheduler{
		interval: interval,
		done:     make(chan bool),
	}
}

func (s *FixedRateScheduler) Start(task func() error) error {
	s.ticker = time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				if err := task(); err != nil {
					logger.GetLogger().Errorf("scheduled task execution failed: %v", err)
				}
			case <-s.done:
				return
			}
		}
	}()

	return nil
}

func (s *FixedRateScheduler) Stop() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)
	return nil
}

// CronScheduler fires on a standard 5-field cron expression, used for
// the nightly retention cleanup.
type CronScheduler struct {
	spec  string
	cron  *cron.Cron
	entry cron.EntryID
}

func NewCronScheduler(spec string) *CronScheduler {
	return &CronScheduler{
		spec: spec,
		cron: cron.New(),
	}
}

func (s *CronScheduler) Start(task func() error) error {
	entryID, err := s.cron.AddFunc(s.spec, func() {
		if err := task(); err != nil {
			logger.GetLogger().Errorf("scheduled task execution failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.spec, err)
	}

	s.entry = entryID
	s.cron.Start()
	return nil
}

func (s *CronScheduler) Stop() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return nil
}
