// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST ITEMS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListItemsQuery filters the catalog.
type ListItemsQuery struct {
	// Category is a category name, a Korean label, "All" or empty.
	Category string

	AvailableOnly bool
}

// ListItemsResult is the filtered catalog in registration order.
type ListItemsResult struct {
	Items          []*inventory.Item `json:"items"`
	Total          int               `json:"total"`
	AvailableCount int               `json:"available_count"`
}

// ListItemsHandler handles ListItemsQuery.
type ListItemsHandler struct {
	registry *inventory.Registry
}

// NewListItemsHandler creates a new ListItemsHandler.
func NewListItemsHandler(registry *inventory.Registry) *ListItemsHandler {
	return &ListItemsHandler{registry: registry}
}

// Handle executes the query.
func (h *ListItemsHandler) Handle(ctx context.Context, q ListItemsQuery) (*ListItemsResult, error) {
	filter, err := inventory.ParseItemFilter(q.Category, q.AvailableOnly)
	if err != nil {
		return nil, err
	}

	items, err := h.registry.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list_items: %w", err)
	}
	if items == nil {
		items = []*inventory.Item{}
	}

	res := &ListItemsResult{Items: items, Total: len(items)}
	for _, it := range items {
		if it.IsAvailable {
			res.AvailableCount++
		}
	}
	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET ITEM QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetItemQuery fetches one item.
type GetItemQuery struct {
	ItemID string
}

// Validate validates the query.
func (q GetItemQuery) Validate() error {
	if q.ItemID == "" {
		return shared.ErrInvalidItemID
	}
	return nil
}

// GetItemHandler handles GetItemQuery.
type GetItemHandler struct {
	registry *inventory.Registry
}

// NewGetItemHandler creates a new GetItemHandler.
func NewGetItemHandler(registry *inventory.Registry) *GetItemHandler {
	return &GetItemHandler{registry: registry}
}

// Handle executes the query.
func (h *GetItemHandler) Handle(ctx context.Context, q GetItemQuery) (*inventory.Item, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return h.registry.Get(ctx, q.ItemID)
}
