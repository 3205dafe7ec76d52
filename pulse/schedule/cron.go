package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/duli1982/aitalentsonardemo-sub003/errors"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron validates a 5-field cron expression or descriptor (@daily, @every 1h).
func ParseCron(expr string) (cron.Schedule, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.WithDetailf(errors.Wrap(errors.ErrInvalidRequest, err.Error()), "cron expression: %q", expr)
	}
	return s, nil
}

// nextAfter returns when a job should next fire after now.
func nextAfter(sched cron.Schedule, interval time.Duration, now time.Time) time.Time {
	if sched != nil {
		return sched.Next(now)
	}
	return now.Add(interval)
}
