package scheduler

import (
	"fmt"
	"time"

	"github.com/classup/rental-desk/internal/domain/period"
	"github.com/classup/rental-desk/pkg/timeutil"
)

// PeriodEndSchedule fires Grace after the end of every teaching period,
// which is when rentals due in that period become overdue.
type PeriodEndSchedule struct {
	clock *period.Clock
	Grace time.Duration
}

// NewPeriodEndSchedule creates a schedule on clock's table and zone.
func NewPeriodEndSchedule(clock *period.Clock, grace time.Duration) *PeriodEndSchedule {
	if clock == nil {
		clock = period.DefaultClock()
	}
	return &PeriodEndSchedule{clock: clock, Grace: grace}
}

// Next returns the first period end plus Grace strictly after t.
func (s *PeriodEndSchedule) Next(t time.Time) time.Time {
	loc := s.clock.Location()
	periods := s.clock.Table().Periods()

	for day := 0; day <= 1; day++ {
		base := t.In(loc).AddDate(0, 0, day)
		for _, p := range periods {
			if p.Index < period.First {
				continue
			}
			at := timeutil.AtMinute(base, p.EndMinute, loc).Add(s.Grace)
			if at.After(t) {
				return at
			}
		}
	}
	return time.Time{}
}

// String returns the string representation of the schedule.
func (s *PeriodEndSchedule) String() string {
	return fmt.Sprintf("@period-end+%s", s.Grace)
}
