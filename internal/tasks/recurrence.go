package tasks

import (
	"errors"
	"fmt"
	"time"
)

// Frequency is how often a recurring task repeats.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
	FrequencyCustom  Frequency = "custom" // every Interval days
)

// EndType controls when a recurrence stops producing new instances.
type EndType string

const (
	EndNever EndType = "never"
	EndCount EndType = "count"
	EndDate  EndType = "date"
)

const (
	maxRecurrenceInterval = 365
	maxRecurrenceCount    = 999
)

// Recurrence describes how a task repeats. Completing a recurring task spawns
// the next instance; Completed counts the instances finished so far.
type Recurrence struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	EndType   EndType    `json:"end_type"`
	EndCount  int        `json:"end_count,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Completed int        `json:"completed,omitempty"`
}

// Validate normalizes defaults and checks field ranges.
func (r *Recurrence) Validate() error {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly, FrequencyCustom:
	default:
		return fmt.Errorf("unknown recurrence frequency %q", r.Frequency)
	}
	if r.Interval == 0 {
		r.Interval = 1
	}
	if r.Interval < 1 || r.Interval > maxRecurrenceInterval {
		return fmt.Errorf("recurrence interval must be between 1 and %d", maxRecurrenceInterval)
	}
	if r.EndType == "" {
		r.EndType = EndNever
	}
	switch r.EndType {
	case EndNever:
	case EndCount:
		if r.EndCount < 1 || r.EndCount > maxRecurrenceCount {
			return fmt.Errorf("recurrence end count must be between 1 and %d", maxRecurrenceCount)
		}
	case EndDate:
		if r.EndDate == nil {
			return errors.New("recurrence end date is required")
		}
	default:
		return fmt.Errorf("unknown recurrence end type %q", r.EndType)
	}
	return nil
}

// NextOccurrence returns the due time one interval after from. Monthly and
// yearly steps clamp to the last day of a shorter target month, so a task
// due January 31 recurs on February 28.
func (r *Recurrence) NextOccurrence(from time.Time) time.Time {
	switch r.Frequency {
	case FrequencyDaily, FrequencyCustom:
		return from.AddDate(0, 0, r.Interval)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7*r.Interval)
	case FrequencyMonthly:
		return addMonthsClamped(from, r.Interval)
	case FrequencyYearly:
		return addMonthsClamped(from, 12*r.Interval)
	}
	return from.AddDate(0, 0, r.Interval)
}

// Continues reports whether another instance due at next should be created,
// given that completed instances have finished (the one being completed
// included).
func (r *Recurrence) Continues(next time.Time, completed int) bool {
	switch r.EndType {
	case EndCount:
		return completed < r.EndCount
	case EndDate:
		return r.EndDate == nil || !next.After(*r.EndDate)
	}
	return true
}

// addMonthsClamped adds months without the day-overflow rollover of AddDate:
// the day of month is clamped to the target month's length first.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	m += time.Month(months)
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
