package models

import (
	"time"
)

// DailyCommitment is a single free-text commitment for one date.
type DailyCommitment struct {
	Date      string `json:"date"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// StreakData is the rolling motivation state: consecutive-day completion
// count, the weekly skip counter and the accrued lateness tax debt.
type StreakData struct {
	CurrentStreak     int              `json:"current_streak"`
	LastCompletedDate string           `json:"last_completed_date,omitempty"`
	SkipsThisWeek     int              `json:"skips_this_week"`
	WeekStart         string           `json:"week_start"`
	AccruedTaxMS      int64            `json:"accrued_tax_ms"`
	Commitment        *DailyCommitment `json:"commitment,omitempty"`
}

// NewStreakData returns a zeroed streak record anchored to the current week.
func NewStreakData(now time.Time) *StreakData {
	return &StreakData{WeekStart: WeekStartOf(now)}
}

// WeekStartOf returns the Monday of now's ISO week, as a plan date string.
func WeekStartOf(now time.Time) string {
	offset := (int(now.Weekday()) + 6) % 7 // Monday = 0
	monday := now.AddDate(0, 0, -offset)
	return monday.Format(PlanDateFormat)
}

// EnsureCurrent refreshes time-derived fields: the weekly skip counter is
// reset when the tracked week start is stale, and the streak is reset to
// zero when the last completion is neither today nor yesterday. Returns
// true when anything changed and the record should be persisted.
func (s *StreakData) EnsureCurrent(now time.Time) bool {
	changed := false
	if ws := WeekStartOf(now); s.WeekStart != ws {
		s.WeekStart = ws
		s.SkipsThisWeek = 0
		changed = true
	}
	if s.CurrentStreak > 0 && !s.completedOnOrAfterYesterday(now) {
		s.CurrentStreak = 0
		changed = true
	}
	return changed
}

func (s *StreakData) completedOnOrAfterYesterday(now time.Time) bool {
	if s.LastCompletedDate == "" {
		return false
	}
	today := now.Format(PlanDateFormat)
	yesterday := now.AddDate(0, 0, -1).Format(PlanDateFormat)
	return s.LastCompletedDate == today || s.LastCompletedDate == yesterday
}

// RecordCompletion advances the streak for a goal completed now. Multiple
// completions on the same day count once.
func (s *StreakData) RecordCompletion(now time.Time) {
	today := now.Format(PlanDateFormat)
	if s.LastCompletedDate == today {
		return
	}
	if s.completedOnOrAfterYesterday(now) {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 1
	}
	s.LastCompletedDate = today
}

// AccruedTax returns the carried tax debt as a duration.
func (s *StreakData) AccruedTax() time.Duration {
	return time.Duration(s.AccruedTaxMS) * time.Millisecond
}

// AddTax merges a lateness tax into the accrued debt. Taxes accumulate
// without cap until consumed by the next break allocation.
func (s *StreakData) AddTax(tax time.Duration) {
	if tax <= 0 {
		return
	}
	s.AccruedTaxMS += tax.Milliseconds()
}

// ConsumeTax zeroes the accrued debt and returns what was held. The debt
// is spent in full by a single break allocation, never partially carried.
func (s *StreakData) ConsumeTax() time.Duration {
	held := s.AccruedTax()
	s.AccruedTaxMS = 0
	return held
}
