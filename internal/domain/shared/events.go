package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types emitted by the rental desk.
const (
	// Item events
	EventItemRegistered EventType = "item.registered"
	EventItemUpdated    EventType = "item.updated"
	EventItemRemoved    EventType = "item.removed"

	// Rental events
	EventRentalOpened  EventType = "rental.opened"
	EventRentalClosed  EventType = "rental.closed"
	EventRentalOverdue EventType = "rental.overdue"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a base event stamped with the given instant.
// Callers pass the same "now" that drove the state change.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Item Events
// ═══════════════════════════════════════════════════════════════════════════

// ItemEvent is emitted when the inventory changes outside of a rental.
type ItemEvent struct {
	BaseEvent
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Payload implements Event interface.
func (e ItemEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":     e.Name,
		"category": e.Category,
	}
}

// NewItemEvent creates an ItemEvent of the given type.
func NewItemEvent(eventType EventType, itemID, name, category string, at time.Time) ItemEvent {
	return ItemEvent{
		BaseEvent: NewBaseEvent(eventType, itemID, at),
		Name:      name,
		Category:  category,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rental Events
// ═══════════════════════════════════════════════════════════════════════════

// RentalOpenedEvent is emitted when an item is handed to a borrower.
type RentalOpenedEvent struct {
	BaseEvent
	ItemID          string `json:"item_id"`
	BorrowerID      string `json:"borrower_id"`
	DeliveredBy     string `json:"delivered_by"`
	ReturnDuePeriod int    `json:"return_due_period"`
	ReturnDueTime   string `json:"return_due_time"`
}

// Payload implements Event interface.
func (e RentalOpenedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"item_id":           e.ItemID,
		"borrower_id":       e.BorrowerID,
		"delivered_by":      e.DeliveredBy,
		"return_due_period": e.ReturnDuePeriod,
		"return_due_time":   e.ReturnDueTime,
	}
}

// NewRentalOpenedEvent creates a new RentalOpenedEvent.
func NewRentalOpenedEvent(recordID, itemID, borrowerID, deliveredBy string, duePeriod int, dueTime string, at time.Time) RentalOpenedEvent {
	return RentalOpenedEvent{
		BaseEvent:       NewBaseEvent(EventRentalOpened, recordID, at),
		ItemID:          itemID,
		BorrowerID:      borrowerID,
		DeliveredBy:     deliveredBy,
		ReturnDuePeriod: duePeriod,
		ReturnDueTime:   dueTime,
	}
}

// RentalClosedEvent is emitted when a rented item comes back.
type RentalClosedEvent struct {
	BaseEvent
	ItemID     string        `json:"item_id"`
	BorrowerID string        `json:"borrower_id"`
	HeldFor    time.Duration `json:"held_for"`
	Late       bool          `json:"late"`
}

// Payload implements Event interface.
func (e RentalClosedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"item_id":     e.ItemID,
		"borrower_id": e.BorrowerID,
		"held_for":    e.HeldFor.String(),
		"late":        e.Late,
	}
}

// NewRentalClosedEvent creates a new RentalClosedEvent.
func NewRentalClosedEvent(recordID, itemID, borrowerID string, heldFor time.Duration, late bool, at time.Time) RentalClosedEvent {
	return RentalClosedEvent{
		BaseEvent:  NewBaseEvent(EventRentalClosed, recordID, at),
		ItemID:     itemID,
		BorrowerID: borrowerID,
		HeldFor:    heldFor,
		Late:       late,
	}
}

// RentalOverdueEvent is emitted by the overdue sweep for a rental past its due time.
type RentalOverdueEvent struct {
	BaseEvent
	ItemID     string    `json:"item_id"`
	BorrowerID string    `json:"borrower_id"`
	DueAt      time.Time `json:"due_at"`
}

// Payload implements Event interface.
func (e RentalOverdueEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"item_id":     e.ItemID,
		"borrower_id": e.BorrowerID,
		"due_at":      e.DueAt.Format(time.RFC3339),
	}
}

// NewRentalOverdueEvent creates a new RentalOverdueEvent.
func NewRentalOverdueEvent(recordID, itemID, borrowerID string, dueAt, at time.Time) RentalOverdueEvent {
	return RentalOverdueEvent{
		BaseEvent:  NewBaseEvent(EventRentalOverdue, recordID, at),
		ItemID:     itemID,
		BorrowerID: borrowerID,
		DueAt:      dueAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards events. Used when no bus is wired.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
