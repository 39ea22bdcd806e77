package query

import (
	"time"

	"github.com/classup/rental-desk/internal/domain/period"
)

// ══════════════════════════════════════════════════════════════════════════════
// DUE ESTIMATE QUERY
// What the request form shows before a rental is submitted.
// ══════════════════════════════════════════════════════════════════════════════

// GetDueEstimateQuery estimates the due period for a rental starting at At.
type GetDueEstimateQuery struct {
	// At defaults to now.
	At time.Time
}

// DueEstimateResult extends the clock's estimate with the absolute due instant.
type DueEstimateResult struct {
	period.DueEstimate
	DueAt time.Time `json:"due_at"`
}

// GetDueEstimateHandler handles GetDueEstimateQuery.
type GetDueEstimateHandler struct {
	clock *period.Clock
}

// NewGetDueEstimateHandler creates a new GetDueEstimateHandler.
func NewGetDueEstimateHandler(clock *period.Clock) *GetDueEstimateHandler {
	if clock == nil {
		clock = period.DefaultClock()
	}
	return &GetDueEstimateHandler{clock: clock}
}

// Handle executes the query. It never fails.
func (h *GetDueEstimateHandler) Handle(q GetDueEstimateQuery) DueEstimateResult {
	at := q.At
	if at.IsZero() {
		at = time.Now()
	}
	return DueEstimateResult{
		DueEstimate: h.clock.Estimate(at),
		DueAt:       h.clock.ReturnDueAt(at),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD TABLE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// PeriodView is one row of the published timetable.
type PeriodView struct {
	Index period.Index `json:"index"`
	Name  string       `json:"name"`
	Start string       `json:"start"`
	End   string       `json:"end"`
}

// PeriodTableResult is the day schedule in the desk's time zone.
type PeriodTableResult struct {
	Timezone string       `json:"timezone"`
	Periods  []PeriodView `json:"periods"`
}

// GetPeriodTableHandler returns the configured timetable.
type GetPeriodTableHandler struct {
	clock *period.Clock
}

// NewGetPeriodTableHandler creates a new GetPeriodTableHandler.
func NewGetPeriodTableHandler(clock *period.Clock) *GetPeriodTableHandler {
	if clock == nil {
		clock = period.DefaultClock()
	}
	return &GetPeriodTableHandler{clock: clock}
}

// Handle executes the query.
func (h *GetPeriodTableHandler) Handle() PeriodTableResult {
	ps := h.clock.Table().Periods()
	out := PeriodTableResult{
		Timezone: h.clock.Location().String(),
		Periods:  make([]PeriodView, len(ps)),
	}
	for i, p := range ps {
		out.Periods[i] = PeriodView{Index: p.Index, Name: p.Name, Start: p.StartTime(), End: p.EndTime()}
	}
	return out
}
