package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec is the user-facing schedule form. Exactly one field must be set.
type Spec struct {
	IntervalMinutes int    `yaml:"interval_minutes,omitempty" json:"interval_minutes,omitempty"`
	Every           string `yaml:"every,omitempty" json:"every,omitempty"`
	Cron            string `yaml:"cron,omitempty" json:"cron,omitempty"`
}

// Schedule resolves the next execution time after a reference instant.
type Schedule interface {
	Next(now time.Time) time.Time
	String() string
}

type intervalSchedule struct {
	d time.Duration
}

func (s intervalSchedule) Next(now time.Time) time.Time { return now.Add(s.d) }
func (s intervalSchedule) String() string             { return "every " + s.d.String() }

type cronSchedule struct {
	expr  string
	sched cron.Schedule
}

func (s cronSchedule) Next(now time.Time) time.Time { return s.sched.Next(now) }
func (s cronSchedule) String() string             { return "cron " + s.expr }

// ParseSpec validates spec and returns its Schedule.
// Cron strings use the standard 5-field syntax, descriptors such as "@daily"
// and an optional "CRON_TZ=" prefix.
func ParseSpec(spec Spec) (Schedule, error) {
	set := 0
	if spec.IntervalMinutes != 0 {
		set++
	}
	if strings.TrimSpace(spec.Every) != "" {
		set++
	}
	if strings.TrimSpace(spec.Cron) != "" {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("schedule: exactly one of interval_minutes, every, cron must be set")
	}
	switch {
	case spec.IntervalMinutes != 0:
		if spec.IntervalMinutes < 0 {
			return nil, fmt.Errorf("schedule: interval_minutes must be > 0, got %d", spec.IntervalMinutes)
		}
		return intervalSchedule{d: time.Duration(spec.IntervalMinutes) * time.Minute}, nil
	case strings.TrimSpace(spec.Every) != "":
		d, ok := ParseIntervalDuration(spec.Every)
		if !ok {
			return nil, fmt.Errorf("schedule: invalid every %q (want e.g. 90m, 4h, 1d, 1w)", spec.Every)
		}
		return intervalSchedule{d: d}, nil
	default:
		expr := strings.TrimSpace(spec.Cron)
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("schedule: invalid cron %q: %w", expr, err)
		}
		return cronSchedule{expr: expr, sched: sched}, nil
	}
}

// ParseIntervalDuration parses "15m", "4h", "1d", "1w" into a duration.
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(interval[:len(interval)-1]))
	if err != nil || n <= 0 {
		return 0, false
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, false
	}
	return time.Duration(n) * unit, true
}
