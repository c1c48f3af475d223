package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField matches one cron position: "*", "*/n", or a comma list.
type cronField struct {
	wildcard bool
	step     int
	values   []int
}

func (f cronField) matches(v int) bool {
	switch {
	case f.step > 0:
		return v%f.step == 0
	case f.wildcard:
		return true
	}
	for _, want := range f.values {
		if want == v {
			return true
		}
	}
	return false
}

func parseCronField(field string) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}
	if rest, ok := strings.CutPrefix(field, "*/"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return cronField{}, fmt.Errorf("invalid cron step %q", field)
		}
		return cronField{step: n}, nil
	}

	parts := strings.Split(field, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron field value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return cronField{values: values}, nil
}

// schedule is a parsed "minute hour day-of-month month day-of-week" line.
type schedule [5]cronField

func parseCron(expr string) (schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return schedule{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	var s schedule
	for i, f := range fields {
		parsed, err := parseCronField(f)
		if err != nil {
			return schedule{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		s[i] = parsed
	}
	return s, nil
}

func (s schedule) matches(t time.Time) bool {
	return s[0].matches(t.Minute()) &&
		s[1].matches(t.Hour()) &&
		s[2].matches(t.Day()) &&
		s[3].matches(int(t.Month())) &&
		s[4].matches(int(t.Weekday()))
}

// next returns the first whole minute after t that matches, searching at
// most one year ahead.
func (s schedule) next(t time.Time) (time.Time, error) {
	candidate := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if s.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}
