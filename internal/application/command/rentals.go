package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/pkg/logger"
	"github.com/classup/rental-desk/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECKOUT ITEM COMMAND
// Staff fulfil an approved request: the item leaves the desk.
// ══════════════════════════════════════════════════════════════════════════════

// CheckoutItemCommand hands an item to a borrower.
type CheckoutItemCommand struct {
	ItemID      string
	BorrowerID  string
	Accessory   *string
	DeliveredBy string

	// At is the handout instant. Zero means now.
	At time.Time

	CorrelationID string
}

// Validate validates the command.
func (c CheckoutItemCommand) Validate() error {
	return c.request().Validate()
}

func (c CheckoutItemCommand) request() inventory.CheckoutRequest {
	return inventory.CheckoutRequest{
		ItemID:      strings.TrimSpace(c.ItemID),
		BorrowerID:  strings.TrimSpace(c.BorrowerID),
		Accessory:   c.Accessory,
		DeliveredBy: strings.TrimSpace(c.DeliveredBy),
	}
}

// CheckoutResult is the opened record plus its due time for display.
type CheckoutResult struct {
	Record        *inventory.RentalRecord `json:"record"`
	ReturnDueTime string                  `json:"return_due_time"`
	DueAt         time.Time               `json:"due_at"`
}

// CheckoutItemHandler handles CheckoutItemCommand.
type CheckoutItemHandler struct {
	ledger    *inventory.Ledger
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewCheckoutItemHandler creates a new CheckoutItemHandler.
func NewCheckoutItemHandler(ledger *inventory.Ledger, publisher shared.EventPublisher, log *logger.Logger) *CheckoutItemHandler {
	publisher, log = withDefaults(publisher, log)
	return &CheckoutItemHandler{ledger: ledger, publisher: publisher, log: log.With(logger.Component("checkout_item"))}
}

// Handle executes the command.
func (h *CheckoutItemHandler) Handle(ctx context.Context, cmd CheckoutItemCommand) (*CheckoutResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := orNow(cmd.At)

	rec, err := h.ledger.Checkout(ctx, cmd.request(), now)
	if err != nil {
		return nil, fmt.Errorf("checkout_item: %w", err)
	}

	clock := h.ledger.Clock()
	result := &CheckoutResult{
		Record:        rec,
		ReturnDueTime: clock.Table().EndTimeOf(rec.ReturnDuePeriod),
		DueAt:         clock.DueInstant(rec.DeliveredAt, rec.ReturnDuePeriod),
	}

	h.log.Info("item checked out",
		logger.RentalID(rec.ID),
		logger.ItemID(rec.ItemID),
		logger.BorrowerID(rec.BorrowerID),
		logger.PeriodIndex(rec.ReturnDuePeriod.Int()),
	)

	event := shared.NewRentalOpenedEvent(rec.ID, rec.ItemID, rec.BorrowerID, rec.DeliveredBy,
		rec.ReturnDuePeriod.Int(), result.ReturnDueTime, now)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	publish(h.publisher, h.log, event)

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RETURN ITEM COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ReturnItemCommand closes an open rental record.
type ReturnItemCommand struct {
	RecordID string

	// At is the return instant. Zero means now.
	At time.Time

	CorrelationID string
}

// Validate validates the command.
func (c ReturnItemCommand) Validate() error {
	if strings.TrimSpace(c.RecordID) == "" {
		return shared.Validationf("rental", "Return", "record ID is required")
	}
	return nil
}

// ReturnResult is the closed record and whether it came back late.
type ReturnResult struct {
	Record  *inventory.RentalRecord `json:"record"`
	HeldFor string                  `json:"held_for"`
	Late    bool                    `json:"late"`
}

// ReturnItemHandler handles ReturnItemCommand.
type ReturnItemHandler struct {
	ledger    *inventory.Ledger
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewReturnItemHandler creates a new ReturnItemHandler.
func NewReturnItemHandler(ledger *inventory.Ledger, publisher shared.EventPublisher, log *logger.Logger) *ReturnItemHandler {
	publisher, log = withDefaults(publisher, log)
	return &ReturnItemHandler{ledger: ledger, publisher: publisher, log: log.With(logger.Component("return_item"))}
}

// Handle executes the command.
func (h *ReturnItemHandler) Handle(ctx context.Context, cmd ReturnItemCommand) (*ReturnResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	now := orNow(cmd.At)

	rec, err := h.ledger.Return(ctx, strings.TrimSpace(cmd.RecordID), now)
	if err != nil {
		return nil, fmt.Errorf("return_item: %w", err)
	}

	heldFor := now.Sub(rec.DeliveredAt)
	late := now.After(h.ledger.Clock().DueInstant(rec.DeliveredAt, rec.ReturnDuePeriod))

	h.log.Info("item returned",
		logger.RentalID(rec.ID),
		logger.ItemID(rec.ItemID),
		logger.Duration("held_for", heldFor),
		logger.Bool("late", late),
	)

	event := shared.NewRentalClosedEvent(rec.ID, rec.ItemID, rec.BorrowerID, heldFor, late, now)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	publish(h.publisher, h.log, event)

	return &ReturnResult{Record: rec, HeldFor: timeutil.FormatDuration(heldFor), Late: late}, nil
}
