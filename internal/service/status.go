package service

import (
	"fmt"
	"time"

	"github.com/spec-kit/checkin-service/internal/config"
	"github.com/spec-kit/checkin-service/internal/domain"
)

// AttendancePolicy holds the workday rules that attendance status is derived from.
type AttendancePolicy struct {
	Location     *time.Location
	WorkdayStart time.Duration
	WorkdayEnd   time.Duration
	LateGrace    time.Duration
	Debounce     time.Duration
	MaxShift     time.Duration
}

// NewAttendancePolicy parses the configured workday.
func NewAttendancePolicy(cfg config.AttendanceConfig) (AttendancePolicy, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return AttendancePolicy{}, fmt.Errorf("attendance timezone %q: %w", cfg.Timezone, err)
	}
	start, err := parseClock(cfg.WorkdayStart)
	if err != nil {
		return AttendancePolicy{}, fmt.Errorf("workday start: %w", err)
	}
	end, err := parseClock(cfg.WorkdayEnd)
	if err != nil {
		return AttendancePolicy{}, fmt.Errorf("workday end: %w", err)
	}
	if end <= start {
		return AttendancePolicy{}, fmt.Errorf("workday end %s must be after start %s", cfg.WorkdayEnd, cfg.WorkdayStart)
	}
	return AttendancePolicy{
		Location:     loc,
		WorkdayStart: start,
		WorkdayEnd:   end,
		LateGrace:    time.Duration(cfg.LateGraceMinutes) * time.Minute,
		Debounce:     time.Duration(cfg.DebounceSeconds) * time.Second,
		MaxShift:     time.Duration(cfg.MaxShiftHours) * time.Hour,
	}, nil
}

// DefaultAttendancePolicy is a 09:00-17:00 UTC day with 15 minutes grace.
func DefaultAttendancePolicy() AttendancePolicy {
	return AttendancePolicy{
		Location:     time.UTC,
		WorkdayStart: 9 * time.Hour,
		WorkdayEnd:   17 * time.Hour,
		LateGrace:    15 * time.Minute,
		Debounce:     time.Minute,
		MaxShift:     16 * time.Hour,
	}
}

func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// DayStart returns local midnight of the day containing t.
func (p AttendancePolicy) DayStart(t time.Time) time.Time {
	local := t.In(p.location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.location())
}

func (p AttendancePolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Derive computes the status of record at now. A nil record means absent.
// Precedence: incomplete, late, early_out, present.
func (p AttendancePolicy) Derive(record *domain.AttendanceRecord, now time.Time) domain.AttendanceStatus {
	if record == nil {
		return domain.AttendanceAbsent
	}

	end := now
	if record.ClockOutTime != nil {
		end = *record.ClockOutTime
	}
	if p.MaxShift > 0 && end.Sub(record.ClockInTime) > p.MaxShift {
		return domain.AttendanceIncomplete
	}

	day := p.DayStart(record.ClockInTime)
	if record.ClockInTime.After(day.Add(p.WorkdayStart + p.LateGrace)) {
		return domain.AttendanceLate
	}
	if record.ClockOutTime != nil && record.ClockOutTime.Before(day.Add(p.WorkdayEnd)) {
		return domain.AttendanceEarlyOut
	}
	return domain.AttendancePresent
}
