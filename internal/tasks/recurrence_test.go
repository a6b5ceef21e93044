package tasks

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		rec  Recurrence
		from time.Time
		want time.Time
	}{
		{"daily", Recurrence{Frequency: FrequencyDaily, Interval: 1}, date(2026, 3, 10), date(2026, 3, 11)},
		{"every 3 days", Recurrence{Frequency: FrequencyCustom, Interval: 3}, date(2026, 3, 10), date(2026, 3, 13)},
		{"weekly", Recurrence{Frequency: FrequencyWeekly, Interval: 1}, date(2026, 3, 10), date(2026, 3, 17)},
		{"biweekly", Recurrence{Frequency: FrequencyWeekly, Interval: 2}, date(2026, 3, 10), date(2026, 3, 24)},
		{"monthly", Recurrence{Frequency: FrequencyMonthly, Interval: 1}, date(2026, 3, 15), date(2026, 4, 15)},
		{"monthly clamps to short month", Recurrence{Frequency: FrequencyMonthly, Interval: 1}, date(2026, 1, 31), date(2026, 2, 28)},
		{"monthly clamp leap year", Recurrence{Frequency: FrequencyMonthly, Interval: 1}, date(2028, 1, 31), date(2028, 2, 29)},
		{"monthly across year", Recurrence{Frequency: FrequencyMonthly, Interval: 2}, date(2026, 12, 31), date(2027, 2, 28)},
		{"yearly", Recurrence{Frequency: FrequencyYearly, Interval: 1}, date(2026, 6, 1), date(2027, 6, 1)},
		{"yearly clamps leap day", Recurrence{Frequency: FrequencyYearly, Interval: 1}, date(2028, 2, 29), date(2029, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rec.NextOccurrence(tt.from)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestRecurrenceValidate(t *testing.T) {
	end := date(2026, 12, 31)
	tests := []struct {
		name    string
		rec     Recurrence
		wantErr bool
	}{
		{"daily defaults", Recurrence{Frequency: FrequencyDaily}, false},
		{"count end", Recurrence{Frequency: FrequencyWeekly, EndType: EndCount, EndCount: 10}, false},
		{"date end", Recurrence{Frequency: FrequencyMonthly, EndType: EndDate, EndDate: &end}, false},
		{"unknown frequency", Recurrence{Frequency: "hourly"}, true},
		{"interval too large", Recurrence{Frequency: FrequencyDaily, Interval: 400}, true},
		{"negative interval", Recurrence{Frequency: FrequencyDaily, Interval: -1}, true},
		{"count end without count", Recurrence{Frequency: FrequencyDaily, EndType: EndCount}, true},
		{"count end over limit", Recurrence{Frequency: FrequencyDaily, EndType: EndCount, EndCount: 1000}, true},
		{"date end without date", Recurrence{Frequency: FrequencyDaily, EndType: EndDate}, true},
		{"unknown end type", Recurrence{Frequency: FrequencyDaily, EndType: "sometime"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecurrenceValidateDefaults(t *testing.T) {
	rec := Recurrence{Frequency: FrequencyDaily}
	if err := rec.Validate(); err != nil {
		t.Fatal(err)
	}
	if rec.Interval != 1 {
		t.Errorf("interval = %d, want default 1", rec.Interval)
	}
	if rec.EndType != EndNever {
		t.Errorf("end type = %q, want %q", rec.EndType, EndNever)
	}
}

func TestRecurrenceContinues(t *testing.T) {
	end := date(2026, 6, 1)

	never := Recurrence{Frequency: FrequencyDaily, EndType: EndNever}
	if !never.Continues(date(2030, 1, 1), 500) {
		t.Error("never-ending recurrence should continue")
	}

	counted := Recurrence{Frequency: FrequencyDaily, EndType: EndCount, EndCount: 3}
	if !counted.Continues(date(2026, 1, 2), 2) {
		t.Error("should continue below the count")
	}
	if counted.Continues(date(2026, 1, 3), 3) {
		t.Error("should stop at the count")
	}

	dated := Recurrence{Frequency: FrequencyDaily, EndType: EndDate, EndDate: &end}
	if !dated.Continues(date(2026, 6, 1), 1) {
		t.Error("should continue through the end date")
	}
	if dated.Continues(date(2026, 6, 2), 1) {
		t.Error("should stop past the end date")
	}
}
