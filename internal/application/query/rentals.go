package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVE RENTALS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// RentalsResult is a list of open rentals, oldest handout first.
type RentalsResult struct {
	Rentals []inventory.ActiveRental `json:"rentals"`
	Total   int                      `json:"total"`
}

func newRentalsResult(rs []inventory.ActiveRental) *RentalsResult {
	if rs == nil {
		rs = []inventory.ActiveRental{}
	}
	return &RentalsResult{Rentals: rs, Total: len(rs)}
}

// GetActiveRentalsHandler lists every item currently out.
type GetActiveRentalsHandler struct {
	ledger *inventory.Ledger
}

// NewGetActiveRentalsHandler creates a new GetActiveRentalsHandler.
func NewGetActiveRentalsHandler(ledger *inventory.Ledger) *GetActiveRentalsHandler {
	return &GetActiveRentalsHandler{ledger: ledger}
}

// Handle executes the query.
func (h *GetActiveRentalsHandler) Handle(ctx context.Context) (*RentalsResult, error) {
	rs, err := h.ledger.ActiveRentals(ctx)
	if err != nil {
		return nil, fmt.Errorf("active_rentals: %w", err)
	}
	return newRentalsResult(rs), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OVERDUE RENTALS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetOverdueRentalsQuery lists rentals past due at At.
type GetOverdueRentalsQuery struct {
	// At defaults to now.
	At time.Time
}

// GetOverdueRentalsHandler handles GetOverdueRentalsQuery.
type GetOverdueRentalsHandler struct {
	ledger *inventory.Ledger
}

// NewGetOverdueRentalsHandler creates a new GetOverdueRentalsHandler.
func NewGetOverdueRentalsHandler(ledger *inventory.Ledger) *GetOverdueRentalsHandler {
	return &GetOverdueRentalsHandler{ledger: ledger}
}

// Handle executes the query.
func (h *GetOverdueRentalsHandler) Handle(ctx context.Context, q GetOverdueRentalsQuery) (*RentalsResult, error) {
	at := q.At
	if at.IsZero() {
		at = time.Now()
	}
	rs, err := h.ledger.OverdueRentals(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("overdue_rentals: %w", err)
	}
	return newRentalsResult(rs), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BORROWER HISTORY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetBorrowerHistoryQuery lists a borrower's rentals, newest first.
type GetBorrowerHistoryQuery struct {
	BorrowerID string

	// Limit caps the result. Zero means 50; the maximum is 200.
	Limit int
}

// Validate validates the query.
func (q GetBorrowerHistoryQuery) Validate() error {
	if strings.TrimSpace(q.BorrowerID) == "" {
		return shared.ErrBorrowerRequired
	}
	if q.Limit < 0 || q.Limit > 200 {
		return shared.Validationf("rental", "History", "limit must be between 1 and 200")
	}
	return nil
}

// BorrowerHistoryResult is a page of a borrower's records.
type BorrowerHistoryResult struct {
	BorrowerID string                    `json:"borrower_id"`
	Records    []*inventory.RentalRecord `json:"records"`
	OpenCount  int                       `json:"open_count"`
	Total      int                       `json:"total"`
}

// GetBorrowerHistoryHandler handles GetBorrowerHistoryQuery.
type GetBorrowerHistoryHandler struct {
	ledger *inventory.Ledger
}

// NewGetBorrowerHistoryHandler creates a new GetBorrowerHistoryHandler.
func NewGetBorrowerHistoryHandler(ledger *inventory.Ledger) *GetBorrowerHistoryHandler {
	return &GetBorrowerHistoryHandler{ledger: ledger}
}

// Handle executes the query.
func (h *GetBorrowerHistoryHandler) Handle(ctx context.Context, q GetBorrowerHistoryQuery) (*BorrowerHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = 50
	}

	recs, err := h.ledger.History(ctx, strings.TrimSpace(q.BorrowerID))
	if err != nil {
		return nil, fmt.Errorf("borrower_history: %w", err)
	}

	res := &BorrowerHistoryResult{BorrowerID: q.BorrowerID, Total: len(recs)}
	for _, r := range recs {
		if r.IsOpen() {
			res.OpenCount++
		}
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	if recs == nil {
		recs = []*inventory.RentalRecord{}
	}
	res.Records = recs
	return res, nil
}
