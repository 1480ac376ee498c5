package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"opentracker/internal/config"
	"opentracker/internal/logger"
)

// How often the loop re-reads its schedule source while waiting, so a
// mid-day schedule edit takes effect without a restart.
const reschedulePollInterval = 30 * time.Second

// settleSleep guards against re-triggering within the same second.
const settleSleep = 1 * time.Second

// ScheduleProvider returns the current daily cron expression. It is
// called on every loop iteration, not cached.
type ScheduleProvider func() (string, error)

// DailyTask runs the pipeline for one local calendar date.
type DailyTask func(ctx context.Context, date time.Time) error

// CronFromReportTime converts an "HH:MM" local time into the restricted
// daily cron form "<minute> <hour> * * *".
func CronFromReportTime(reportTime string) (string, error) {
	hour, minute, err := config.ParseHHMM(reportTime)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// RunDaily loops forever, firing task once per day at the provider's
// configured time. Provider or parse failures are retried after the poll
// interval; task failures are logged and do not stop the loop. Returns
// only when ctx is cancelled.
func RunDaily(ctx context.Context, provider ScheduleProvider, task DailyTask) error {
	log := logger.GetLogger()
	lastLoggedCron := ""

	for {
		cronExpr, err := provider()
		if err != nil {
			log.Errorf("failed to load report schedule: %v", err)
			if err := sleepCtx(ctx, reschedulePollInterval); err != nil {
				return err
			}
			continue
		}

		delay, err := nextRunDelay(cronExpr, time.Now())
		if err != nil {
			log.Errorf("invalid report cron expression %q: %v", cronExpr, err)
			if err := sleepCtx(ctx, reschedulePollInterval); err != nil {
				return err
			}
			continue
		}

		if cronExpr != lastLoggedCron {
			log.Infof("next report scheduled in %s (cron %q)", delay.Round(time.Second), cronExpr)
			lastLoggedCron = cronExpr
		}

		if delay > reschedulePollInterval {
			if err := sleepCtx(ctx, reschedulePollInterval); err != nil {
				return err
			}
			continue
		}

		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}

		date := time.Now()
		if err := task(ctx, date); err != nil {
			log.Errorf("scheduled report generation failed for %s: %v",
				date.Format("2006-01-02"), err)
		}

		if err := sleepCtx(ctx, settleSleep); err != nil {
			return err
		}
	}
}

// nextRunDelay computes the time until the next daily trigger. When
// today's trigger instant has passed, or the local clock makes it
// ambiguous, the following day's instant is used.
func nextRunDelay(cronExpr string, now time.Time) (time.Duration, error) {
	hour, minute, err := parseDailyCronTime(cronExpr)
	if err != nil {
		return 0, err
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	// A DST transition can map today's wall-clock time onto a different
	// instant; when that happens, fall back to tomorrow at the configured
	// time rather than firing at an arbitrary interpretation.
	if candidate.Hour() != hour || candidate.Minute() != minute {
		candidate = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	if !candidate.After(now) {
		candidate = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}

	return candidate.Sub(now), nil
}

// parseDailyCronTime accepts only the restricted daily form
// "<minute> <hour> * * *".
func parseDailyCronTime(cronExpr string) (hour, minute int, err error) {
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 {
		return 0, 0, fmt.Errorf("invalid cron expression %q: expected format '<minute> <hour> * * *'", cronExpr)
	}
	if fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return 0, 0, fmt.Errorf("unsupported cron expression %q: only daily format '<minute> <hour> * * *' is supported", cronExpr)
	}

	minute, err = strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid cron minute: %s", fields[0])
	}
	hour, err = strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid cron hour: %s", fields[1])
	}
	return hour, minute, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
