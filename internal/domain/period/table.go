// Package period defines the academy's day schedule and the clock that maps
// wall-clock instants onto it. Everything here is pure: no I/O, no global
// clock reads, safe for concurrent use.
package period

import (
	"fmt"
	"sort"

	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/pkg/timeutil"
)

// Index identifies a period of the day. 0 is "not in a teaching period".
type Index int

const (
	// None is returned for any instant outside every teaching period.
	None Index = 0
	// First is the first teaching period of the day.
	First Index = 1
	// Last is the final teaching period of the day.
	Last Index = 7
)

// FallbackEndTime is the due time used when an index has no mapped end time.
const FallbackEndTime = "22:00"

const fallbackEndMinute = 22 * 60

// IsValid reports whether the index is within the schedule's range.
func (i Index) IsValid() bool {
	return i >= None && i <= Last
}

// Int returns the underlying int value.
func (i Index) Int() int {
	return int(i)
}

// Period is a half-open range [StartMinute, EndMinute) of minutes since local midnight.
type Period struct {
	Index       Index  `json:"index"`
	Name        string `json:"name"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// Contains reports whether the minute-of-day falls inside the period.
func (p Period) Contains(minute int) bool {
	return minute >= p.StartMinute && minute < p.EndMinute
}

// StartTime returns the start boundary as "HH:MM".
func (p Period) StartTime() string {
	return timeutil.FormatClock(p.StartMinute)
}

// EndTime returns the end boundary as "HH:MM".
func (p Period) EndTime() string {
	return timeutil.FormatClock(p.EndMinute)
}

// Table is an immutable, ordered list of periods.
type Table struct {
	periods []Period
}

// DefaultTable returns the academy's standard day schedule.
//
//	0  00:00-08:00  arrival / before classes
//	1  08:00-10:00
//	2  10:20-12:00
//	3  13:00-15:00
//	4  15:20-16:40
//	5  16:50-18:00
//	6  19:00-20:20
//	7  20:30-22:00
//
// The gaps between ranges (breaks, lunch, dinner) belong to no period.
func DefaultTable() Table {
	return Table{periods: []Period{
		{Index: 0, Name: "arrival", StartMinute: 0, EndMinute: 480},
		{Index: 1, Name: "period 1", StartMinute: 480, EndMinute: 600},
		{Index: 2, Name: "period 2", StartMinute: 620, EndMinute: 720},
		{Index: 3, Name: "period 3", StartMinute: 780, EndMinute: 900},
		{Index: 4, Name: "period 4", StartMinute: 920, EndMinute: 1000},
		{Index: 5, Name: "period 5", StartMinute: 1010, EndMinute: 1080},
		{Index: 6, Name: "period 6", StartMinute: 1140, EndMinute: 1220},
		{Index: 7, Name: "period 7", StartMinute: 1230, EndMinute: 1320},
	}}
}

// NewTable validates and builds a custom table. Periods are sorted by index;
// ranges must be non-empty, inside the day and pairwise disjoint.
func NewTable(periods []Period) (Table, error) {
	ps := make([]Period, len(periods))
	copy(ps, periods)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Index < ps[j].Index })

	seen := make(map[Index]bool, len(ps))
	for i, p := range ps {
		if !p.Index.IsValid() {
			return Table{}, invalidTable(fmt.Errorf("index %d: %w", p.Index, shared.ErrInvalidPeriodIndex))
		}
		if seen[p.Index] {
			return Table{}, invalidTable(fmt.Errorf("duplicate index %d", p.Index))
		}
		seen[p.Index] = true

		if p.StartMinute < 0 || p.EndMinute > timeutil.MinutesPerDay || p.StartMinute >= p.EndMinute {
			return Table{}, invalidTable(fmt.Errorf("period %d has bad range [%d,%d)", p.Index, p.StartMinute, p.EndMinute))
		}
		// Index order must be chronological order: PeriodAt takes the first match.
		if i > 0 && p.StartMinute < ps[i-1].EndMinute {
			return Table{}, invalidTable(fmt.Errorf("period %d starts before period %d ends", p.Index, ps[i-1].Index))
		}
	}

	return Table{periods: ps}, nil
}

func invalidTable(cause error) error {
	e := *shared.ErrInvalidPeriodTable
	e.Err = cause
	return &e
}

// Periods returns a copy of the ordered periods.
func (t Table) Periods() []Period {
	out := make([]Period, len(t.periods))
	copy(out, t.periods)
	return out
}

// Len returns the number of periods.
func (t Table) Len() int {
	return len(t.periods)
}

// Lookup returns the period with the given index.
func (t Table) Lookup(idx Index) (Period, bool) {
	for _, p := range t.periods {
		if p.Index == idx {
			return p, true
		}
	}
	return Period{}, false
}

// PeriodAt returns the first period containing the minute-of-day.
func (t Table) PeriodAt(minute int) (Period, bool) {
	for _, p := range t.periods {
		if p.Contains(minute) {
			return p, true
		}
	}
	return Period{}, false
}

// EndMinuteOf returns the minute-of-day at which a due period ends.
// Only teaching periods carry a due time; index 0 and unknown indices use
// the end of the last teaching period.
func (t Table) EndMinuteOf(idx Index) int {
	if idx >= First {
		if p, ok := t.Lookup(idx); ok {
			return p.EndMinute
		}
	}
	return t.lastEndMinute()
}

// EndTimeOf returns the due time "HH:MM" for a period index.
func (t Table) EndTimeOf(idx Index) string {
	return timeutil.FormatClock(t.EndMinuteOf(idx))
}

func (t Table) lastEndMinute() int {
	last := -1
	for _, p := range t.periods {
		if p.Index >= First && p.EndMinute > last {
			last = p.EndMinute
		}
	}
	if last < 0 {
		return fallbackEndMinute
	}
	return last
}
