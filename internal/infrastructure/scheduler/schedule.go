package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON
// ══════════════════════════════════════════════════════════════════════════════

// CronExpression is a 5-field cron schedule:
// minute hour day-of-month month day-of-week.
//
//   - "0 9 * * *"   every day at 09:00
//   - "*/30 * * * *" every 30 minutes
//   - "0 18 * * 1-5" weekdays at 18:00
type CronExpression struct {
	raw      string
	minutes  []int
	hours    []int
	days     []int
	months   []int
	weekdays []int
}

var cronFields = []struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day", 1, 31},
	{"month", 1, 12},
	{"weekday", 0, 6},
}

// ParseCronExpression parses a cron expression string.
// Supports *, */n, n, n-m, n-m/s and comma separated lists of those.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != len(cronFields) {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	parsed := make([][]int, len(fields))
	for i, f := range fields {
		values, err := parseCronField(f, cronFields[i].min, cronFields[i].max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", cronFields[i].name, err)
		}
		parsed[i] = values
	}

	return &CronExpression{
		raw:      expr,
		minutes:  parsed[0],
		hours:    parsed[1],
		days:     parsed[2],
		months:   parsed[3],
		weekdays: parsed[4],
	}, nil
}

func parseCronField(field string, min, max int) ([]int, error) {
	var out []int
	for _, part := range strings.Split(field, ",") {
		values, err := parseCronPart(part, min, max)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func parseCronPart(part string, min, max int) ([]int, error) {
	step := 1
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", s)
		}
		step, part = n, base
	}

	start, end := min, max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err1, err2 error
		start, err1 = strconv.Atoi(lo)
		end, err2 = strconv.Atoi(hi)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("invalid range: %s", part)
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid value: %s", part)
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	if start < min || end > max || start > end {
		return nil, fmt.Errorf("value out of range [%d-%d]: %s", min, max, part)
	}

	values := make([]int, 0, (end-start)/step+1)
	for v := start; v <= end; v += step {
		values = append(values, v)
	}
	return values, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after t, or the zero time
// if nothing matches within a year.
func (ce *CronExpression) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)

	for i := 0; i < cronSearchLimit; i++ {
		if ce.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

// Prev returns the latest matching minute at or before t, or the zero time
// if nothing matched within the past year. A run that fired at 09:00 and
// finishes at 09:03 still maps to 09:00.
func (ce *CronExpression) Prev(t time.Time) time.Time {
	prev := t.Truncate(time.Minute)

	for i := 0; i < cronSearchLimit; i++ {
		if ce.matches(prev) {
			return prev
		}
		prev = prev.Add(-time.Minute)
	}
	return time.Time{}
}

const cronSearchLimit = 366 * 24 * 60

func (ce *CronExpression) matches(t time.Time) bool {
	return slices.Contains(ce.minutes, t.Minute()) &&
		slices.Contains(ce.hours, t.Hour()) &&
		slices.Contains(ce.days, t.Day()) &&
		slices.Contains(ce.months, int(t.Month())) &&
		slices.Contains(ce.weekdays, int(t.Weekday()))
}

// ParseSchedule builds a Schedule from either a cron expression or an interval.
// A non-empty cron expression wins.
func ParseSchedule(cronExpr string, interval time.Duration) (Schedule, error) {
	if strings.TrimSpace(cronExpr) != "" {
		ce, err := ParseCronExpression(cronExpr)
		if err != nil {
			return nil, err
		}
		return ce, nil
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	return NewIntervalSchedule(interval), nil
}

// LongestGap returns the longest distance between consecutive fire times
// among the next n firings after from. Zero if the schedule never fires.
func LongestGap(s Schedule, from time.Time, n int) time.Duration {
	var longest time.Duration
	prev := s.Next(from)
	for i := 0; i < n && !prev.IsZero(); i++ {
		next := s.Next(prev)
		if next.IsZero() {
			break
		}
		longest = max(longest, next.Sub(prev))
		prev = next
	}
	return longest
}
