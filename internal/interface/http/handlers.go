package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/classup/rental-desk/internal/application/command"
	"github.com/classup/rental-desk/internal/application/query"
	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "Rental Desk API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":   "/health",
			"periods":  "/api/v1/periods",
			"estimate": "/api/v1/periods/estimate",
			"items":    "/api/v1/items",
			"active":   "/api/v1/rentals/active",
			"overdue":  "/api/v1/rentals/overdue",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, r, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, r, http.StatusOK, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetPeriods handles GET /api/v1/periods
func (s *Server) handleGetPeriods(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetPeriodTableHandler == nil {
		s.notConfigured(w, r, "period table")
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.GetPeriodTableHandler.Handle())
}

// handleGetDueEstimate handles GET /api/v1/periods/estimate?at=RFC3339
//
// This is what the request form shows before a student submits: the current
// period and when the item would be due back.
func (s *Server) handleGetDueEstimate(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetDueEstimateHandler == nil {
		s.notConfigured(w, r, "due estimate")
		return
	}

	at, err := s.instantParam(r, "at")
	if err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_parameter", "at must be an RFC 3339 timestamp", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, s.deps.GetDueEstimateHandler.Handle(query.GetDueEstimateQuery{At: at}))
}

// ══════════════════════════════════════════════════════════════════════════════
// ITEM HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createItemRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Category     string  `json:"category" validate:"required,max=32"`
	SerialNumber *string `json:"serial_number" validate:"omitempty,max=64"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

type updateItemRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=100"`
	Category     *string `json:"category" validate:"omitempty,max=32"`
	SerialNumber *string `json:"serial_number" validate:"omitempty,max=64"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`

	// Availability belongs to the rental ledger. The field is decoded only
	// so that sending it is rejected with a clear message.
	IsAvailable *bool `json:"is_available"`
}

// handleListItems handles GET /api/v1/items?category=&available_only=
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListItemsHandler == nil {
		s.notConfigured(w, r, "list items")
		return
	}

	result, err := s.deps.ListItemsHandler.Handle(r.Context(), query.ListItemsQuery{
		Category:      r.URL.Query().Get("category"),
		AvailableOnly: getQueryParamBool(r, "available_only"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.Total})
}

// handleGetItem handles GET /api/v1/items/{id}
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetItemHandler == nil {
		s.notConfigured(w, r, "get item")
		return
	}

	item, err := s.deps.GetItemHandler.Handle(r.Context(), query.GetItemQuery{ItemID: r.PathValue("id")})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

// handleCreateItem handles POST /api/v1/items
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateItemHandler == nil {
		s.notConfigured(w, r, "create item")
		return
	}

	var req createItemRequest
	if !s.decode(w, r, &req) {
		return
	}

	item, err := s.deps.CreateItemHandler.Handle(r.Context(), command.CreateItemCommand{
		Name:          req.Name,
		Category:      req.Category,
		SerialNumber:  req.SerialNumber,
		Notes:         req.Notes,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, item)
}

// handleUpdateItem handles PUT /api/v1/items/{id}
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateItemHandler == nil {
		s.notConfigured(w, r, "update item")
		return
	}

	var req updateItemRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.IsAvailable != nil {
		s.writeDomainError(w, r, shared.ErrAvailabilityIsOwned)
		return
	}

	item, err := s.deps.UpdateItemHandler.Handle(r.Context(), command.UpdateItemCommand{
		ItemID:        r.PathValue("id"),
		Name:          req.Name,
		Category:      req.Category,
		SerialNumber:  req.SerialNumber,
		Notes:         req.Notes,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

// handleDeleteItem handles DELETE /api/v1/items/{id}
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if s.deps.DeleteItemHandler == nil {
		s.notConfigured(w, r, "delete item")
		return
	}

	id := r.PathValue("id")
	err := s.deps.DeleteItemHandler.Handle(r.Context(), command.DeleteItemCommand{
		ItemID:        id,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// ══════════════════════════════════════════════════════════════════════════════
// RENTAL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type checkoutRequest struct {
	ItemID      string  `json:"item_id" validate:"required,max=64"`
	BorrowerID  string  `json:"borrower_id" validate:"required,max=64"`
	Accessory   *string `json:"requested_accessory" validate:"omitempty,max=100"`
	DeliveredBy string  `json:"delivered_by" validate:"required,max=64"`
}

// handleCheckout handles POST /api/v1/rentals
//
// Desk staff call this when they hand the item over.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.deps.CheckoutItemHandler == nil {
		s.notConfigured(w, r, "checkout")
		return
	}

	var req checkoutRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.deps.CheckoutItemHandler.Handle(r.Context(), command.CheckoutItemCommand{
		ItemID:        req.ItemID,
		BorrowerID:    req.BorrowerID,
		Accessory:     req.Accessory,
		DeliveredBy:   req.DeliveredBy,
		At:            s.deps.Now(),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

// handleReturn handles PUT /api/v1/rentals/{id}/return
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReturnItemHandler == nil {
		s.notConfigured(w, r, "return")
		return
	}

	result, err := s.deps.ReturnItemHandler.Handle(r.Context(), command.ReturnItemCommand{
		RecordID:      r.PathValue("id"),
		At:            s.deps.Now(),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetActiveRentals handles GET /api/v1/rentals/active
func (s *Server) handleGetActiveRentals(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetActiveRentalsHandler == nil {
		s.notConfigured(w, r, "active rentals")
		return
	}

	result, err := s.deps.GetActiveRentalsHandler.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.Total})
}

// handleGetOverdueRentals handles GET /api/v1/rentals/overdue?at=RFC3339
func (s *Server) handleGetOverdueRentals(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetOverdueRentalsHandler == nil {
		s.notConfigured(w, r, "overdue rentals")
		return
	}

	at, err := s.instantParam(r, "at")
	if err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_parameter", "at must be an RFC 3339 timestamp", err.Error())
		return
	}

	result, err := s.deps.GetOverdueRentalsHandler.Handle(r.Context(), query.GetOverdueRentalsQuery{At: at})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.Total})
}

// handleGetBorrowerHistory handles GET /api/v1/borrowers/{id}/rentals?limit=
func (s *Server) handleGetBorrowerHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetBorrowerHistoryHandler == nil {
		s.notConfigured(w, r, "borrower history")
		return
	}

	result, err := s.deps.GetBorrowerHistoryHandler.Handle(r.Context(), query.GetBorrowerHistoryQuery{
		BorrowerID: r.PathValue("id"),
		Limit:      getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.Total})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING & ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decode reads a JSON body into dst and validates its struct tags. It writes
// the error response itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
		case errors.Is(err, io.EOF):
			writeJSONError(w, r, http.StatusBadRequest, "invalid_body", "Request body is required")
		default:
			writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON", err.Error())
		}
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "validation_error", "Request failed validation", describeValidation(err))
		return false
	}
	return true
}

// describeValidation flattens validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fieldName(fe), rule))
	}
	return strings.Join(parts, "; ")
}

func fieldName(fe validator.FieldError) string {
	switch fe.StructField() {
	case "ItemID":
		return "item_id"
	case "BorrowerID":
		return "borrower_id"
	case "DeliveredBy":
		return "delivered_by"
	case "SerialNumber":
		return "serial_number"
	case "Accessory":
		return "requested_accessory"
	}
	return strings.ToLower(fe.Field())
}

// writeDomainError maps domain error kinds to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var de *shared.DomainError
	message := err.Error()
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}

	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", message)
	case shared.IsConflict(err):
		writeJSONError(w, r, http.StatusConflict, "conflict", message)
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", message)
	case errors.Is(err, shared.ErrLockNotAcquired), errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, r, http.StatusServiceUnavailable, "busy", "The item is being updated, please retry")
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func (s *Server) notConfigured(w http.ResponseWriter, r *http.Request, what string) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", what+" handler not configured")
}

// instantParam parses an optional RFC 3339 query parameter. Absent means now.
func (s *Server) instantParam(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return s.deps.Now(), nil
	}
	return time.Parse(time.RFC3339, raw)
}
