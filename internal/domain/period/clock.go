package period

import (
	"time"

	"github.com/classup/rental-desk/pkg/timeutil"
)

// Clock maps instants onto a Table in the academy's local timezone.
// It never reads the system clock; every method takes "now" explicitly.
type Clock struct {
	table Table
	loc   *time.Location
}

// NewClock creates a Clock. A nil location means Asia/Seoul.
func NewClock(table Table, loc *time.Location) *Clock {
	if loc == nil {
		loc = timeutil.SeoulTZ
	}
	return &Clock{table: table, loc: loc}
}

// DefaultClock is a Clock over DefaultTable in Asia/Seoul.
func DefaultClock() *Clock {
	return NewClock(DefaultTable(), timeutil.SeoulTZ)
}

// Table returns the schedule the clock runs on.
func (c *Clock) Table() Table {
	return c.table
}

// Location returns the clock's timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// CurrentPeriod returns the period containing now, or None when now is in a
// break, after closing, or before the first defined range.
func (c *Clock) CurrentPeriod(now time.Time) Index {
	p, ok := c.table.PeriodAt(timeutil.MinuteOfDay(now, c.loc))
	if !ok {
		return None
	}
	return p.Index
}

// ReturnDuePeriod returns the period by whose end a rental started at now is due.
// Before classes it is the first period; during the last period it stays the last.
func (c *Clock) ReturnDuePeriod(now time.Time) Index {
	cur := c.CurrentPeriod(now)
	switch {
	case cur <= None:
		return First
	case cur >= Last:
		return Last
	default:
		return cur + 1
	}
}

// ReturnDueTime returns the due period's end as "HH:MM".
func (c *Clock) ReturnDueTime(now time.Time) string {
	return c.table.EndTimeOf(c.ReturnDuePeriod(now))
}

// ReturnDueAt returns the instant a rental started at now becomes due.
// A due time that would fall at or before now (for example, a handout after
// closing) rolls over to the next local day.
func (c *Clock) ReturnDueAt(now time.Time) time.Time {
	return c.DueInstant(now, c.ReturnDuePeriod(now))
}

// DueInstant resolves a due period recorded at start into an absolute instant.
func (c *Clock) DueInstant(start time.Time, due Index) time.Time {
	at := timeutil.AtMinute(start, c.table.EndMinuteOf(due), c.loc)
	if !at.After(start) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// DueEstimate bundles what the request form shows a borrower before checkout.
type DueEstimate struct {
	At              time.Time `json:"at"`
	CurrentPeriod   Index     `json:"current_period"`
	ReturnDuePeriod Index     `json:"return_due_period"`
	ReturnDueTime   string    `json:"return_due_time"`
}

// Estimate computes the due estimate for now.
func (c *Clock) Estimate(now time.Time) DueEstimate {
	return DueEstimate{
		At:              now.In(c.loc),
		CurrentPeriod:   c.CurrentPeriod(now),
		ReturnDuePeriod: c.ReturnDuePeriod(now),
		ReturnDueTime:   c.ReturnDueTime(now),
	}
}
