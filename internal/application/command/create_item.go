package command

import (
	"context"
	"fmt"
	"time"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE ITEM COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateItemCommand registers a new lendable item.
type CreateItemCommand struct {
	Name string

	// Category accepts the English name or the Korean label.
	Category string

	SerialNumber *string
	Notes        *string

	CorrelationID string
}

// Validate validates the command.
func (c CreateItemCommand) Validate() error {
	if _, err := inventory.ParseCategory(c.Category); err != nil {
		return err
	}
	return nil
}

// CreateItemHandler handles CreateItemCommand.
type CreateItemHandler struct {
	registry  *inventory.Registry
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewCreateItemHandler creates a new CreateItemHandler.
func NewCreateItemHandler(registry *inventory.Registry, publisher shared.EventPublisher, log *logger.Logger) *CreateItemHandler {
	publisher, log = withDefaults(publisher, log)
	return &CreateItemHandler{registry: registry, publisher: publisher, log: log.With(logger.Component("create_item"))}
}

// Handle executes the command.
func (h *CreateItemHandler) Handle(ctx context.Context, cmd CreateItemCommand) (*inventory.Item, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	category, _ := inventory.ParseCategory(cmd.Category)

	item, err := h.registry.Create(ctx, inventory.NewItem{
		Name:         cmd.Name,
		Category:     category,
		SerialNumber: cmd.SerialNumber,
		Notes:        cmd.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create_item: %w", err)
	}

	h.log.Info("item registered", logger.ItemID(item.ID), logger.String("category", string(item.Category)))

	event := shared.NewItemEvent(shared.EventItemRegistered, item.ID, item.Name, string(item.Category), item.CreatedAt)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	publish(h.publisher, h.log, event)

	return item, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE ITEM COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// UpdateItemCommand is a partial update. Nil fields are left unchanged.
type UpdateItemCommand struct {
	ItemID       string
	Name         *string
	Category     *string
	SerialNumber *string
	Notes        *string

	CorrelationID string
}

// Validate validates the command.
func (c UpdateItemCommand) Validate() error {
	if c.ItemID == "" {
		return shared.ErrInvalidItemID
	}
	if c.Category != nil {
		if _, err := inventory.ParseCategory(*c.Category); err != nil {
			return err
		}
	}
	return nil
}

func (c UpdateItemCommand) fields() inventory.ItemFields {
	f := inventory.ItemFields{Name: c.Name, SerialNumber: c.SerialNumber, Notes: c.Notes}
	if c.Category != nil {
		cat, _ := inventory.ParseCategory(*c.Category)
		f.Category = &cat
	}
	return f
}

// UpdateItemHandler handles UpdateItemCommand.
type UpdateItemHandler struct {
	registry  *inventory.Registry
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewUpdateItemHandler creates a new UpdateItemHandler.
func NewUpdateItemHandler(registry *inventory.Registry, publisher shared.EventPublisher, log *logger.Logger) *UpdateItemHandler {
	publisher, log = withDefaults(publisher, log)
	return &UpdateItemHandler{registry: registry, publisher: publisher, log: log.With(logger.Component("update_item"))}
}

// Handle executes the command.
func (h *UpdateItemHandler) Handle(ctx context.Context, cmd UpdateItemCommand) (*inventory.Item, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	item, err := h.registry.Update(ctx, cmd.ItemID, cmd.fields())
	if err != nil {
		return nil, fmt.Errorf("update_item: %w", err)
	}

	h.log.Info("item updated", logger.ItemID(item.ID))

	event := shared.NewItemEvent(shared.EventItemUpdated, item.ID, item.Name, string(item.Category), item.UpdatedAt)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	publish(h.publisher, h.log, event)

	return item, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETE ITEM COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteItemCommand removes an item that is not out on loan.
type DeleteItemCommand struct {
	ItemID        string
	CorrelationID string
}

// Validate validates the command.
func (c DeleteItemCommand) Validate() error {
	if c.ItemID == "" {
		return shared.ErrInvalidItemID
	}
	return nil
}

// DeleteItemHandler handles DeleteItemCommand.
type DeleteItemHandler struct {
	registry  *inventory.Registry
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewDeleteItemHandler creates a new DeleteItemHandler.
func NewDeleteItemHandler(registry *inventory.Registry, publisher shared.EventPublisher, log *logger.Logger) *DeleteItemHandler {
	publisher, log = withDefaults(publisher, log)
	return &DeleteItemHandler{registry: registry, publisher: publisher, log: log.With(logger.Component("delete_item"))}
}

// Handle executes the command.
func (h *DeleteItemHandler) Handle(ctx context.Context, cmd DeleteItemCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	// Read first so the event can carry name and category.
	item, err := h.registry.Get(ctx, cmd.ItemID)
	if err != nil {
		return fmt.Errorf("delete_item: %w", err)
	}
	if err := h.registry.Delete(ctx, cmd.ItemID); err != nil {
		return fmt.Errorf("delete_item: %w", err)
	}

	h.log.Info("item removed", logger.ItemID(cmd.ItemID))

	event := shared.NewItemEvent(shared.EventItemRemoved, item.ID, item.Name, string(item.Category), time.Now())
	event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	publish(h.publisher, h.log, event)

	return nil
}
