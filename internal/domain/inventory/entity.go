package inventory

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/classup/rental-desk/internal/domain/period"
	"github.com/classup/rental-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY
// ══════════════════════════════════════════════════════════════════════════════

// Category classifies a lendable item.
type Category string

const (
	CategoryPowerBank Category = "PowerBank"
	CategoryStand     Category = "Stand"
	CategoryUmbrella  Category = "Umbrella"
	CategoryOther     Category = "Other"
)

// FilterAll is the list filter value that matches every category.
const FilterAll = "All"

// Categories returns all known categories in display order.
func Categories() []Category {
	return []Category{CategoryPowerBank, CategoryStand, CategoryUmbrella, CategoryOther}
}

// koreanLabels are the names the desk's paper forms and the old admin screen use.
var koreanLabels = map[Category]string{
	CategoryPowerBank: "보조배터리",
	CategoryStand:     "스탠드",
	CategoryUmbrella:  "우산",
	CategoryOther:     "기타",
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	_, ok := koreanLabels[c]
	return ok
}

// Label returns the Korean display label.
func (c Category) Label() string {
	return koreanLabels[c]
}

// String returns the canonical name.
func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts a canonical name (case-insensitive) or a Korean label.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) || s == c.Label() {
			return c, nil
		}
	}
	return "", shared.WrapError("item", "ParseCategory", shared.ErrValidation, fmt.Sprintf("unknown category %q", s), shared.ErrInvalidCategory)
}

// ══════════════════════════════════════════════════════════════════════════════
// ITEM
// ══════════════════════════════════════════════════════════════════════════════

// Item is a physical object the desk lends out.
type Item struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     Category  `json:"category"`
	SerialNumber *string   `json:"serial_number,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	IsAvailable  bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Column widths of the items and rental_records tables, in characters.
const (
	MaxNameLength        = 100
	MaxSerialLength      = 100
	MaxAccessoryLength   = 100
	MaxDeliveredByLength = 100
)

// Validate checks invariants that hold for every stored item.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return shared.ErrItemNameRequired
	}
	if utf8.RuneCountInString(i.Name) > MaxNameLength {
		return shared.ErrItemNameTooLong
	}
	if i.SerialNumber != nil && utf8.RuneCountInString(*i.SerialNumber) > MaxSerialLength {
		return shared.ErrSerialTooLong
	}
	if !i.Category.IsValid() {
		return shared.ErrInvalidCategory
	}
	return nil
}

// Clone returns a deep copy.
func (i *Item) Clone() *Item {
	c := *i
	c.SerialNumber = cloneString(i.SerialNumber)
	c.Notes = cloneString(i.Notes)
	return &c
}

// NewItem is the input for registering an item.
type NewItem struct {
	Name         string
	Category     Category
	SerialNumber *string
	Notes        *string
}

// ItemFields is a partial update. A nil field is left unchanged.
// Availability is not part of it.
type ItemFields struct {
	Name         *string
	Category     *Category
	SerialNumber *string
	Notes        *string
}

// IsEmpty reports whether no field is set.
func (f ItemFields) IsEmpty() bool {
	return f.Name == nil && f.Category == nil && f.SerialNumber == nil && f.Notes == nil
}

// apply writes the set fields onto item.
func (f ItemFields) apply(item *Item) {
	if f.Name != nil {
		item.Name = strings.TrimSpace(*f.Name)
	}
	if f.Category != nil {
		item.Category = *f.Category
	}
	if f.SerialNumber != nil {
		item.SerialNumber = normalizeOptional(f.SerialNumber)
	}
	if f.Notes != nil {
		item.Notes = normalizeOptional(f.Notes)
	}
}

// ItemFilter narrows Registry.List.
type ItemFilter struct {
	// Category restricts to one category. Empty means every category.
	Category Category

	// AvailableOnly hides items that are out on loan.
	AvailableOnly bool
}

// ParseItemFilter builds a filter from request values. "", "All" and "all" match everything.
func ParseItemFilter(category string, availableOnly bool) (ItemFilter, error) {
	f := ItemFilter{AvailableOnly: availableOnly}
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, FilterAll) {
		return f, nil
	}
	c, err := ParseCategory(category)
	if err != nil {
		return ItemFilter{}, err
	}
	f.Category = c
	return f, nil
}

// Matches reports whether item passes the filter.
func (f ItemFilter) Matches(item *Item) bool {
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.AvailableOnly && !item.IsAvailable {
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// RENTAL RECORD
// ══════════════════════════════════════════════════════════════════════════════

// RentalRecord is one handout of one item to one borrower.
type RentalRecord struct {
	ID                 string       `json:"id"`
	ItemID             string       `json:"item_id"`
	BorrowerID         string       `json:"borrower_id"`
	RequestedAccessory *string      `json:"requested_accessory,omitempty"`
	DeliveredAt        time.Time    `json:"delivered_at"`
	DeliveredBy        string       `json:"delivered_by"`
	ReturnDuePeriod    period.Index `json:"return_due_period"`
	ReturnedAt         *time.Time   `json:"returned_at,omitempty"`
}

// IsOpen reports whether the item has not come back yet.
func (r *RentalRecord) IsOpen() bool {
	return r.ReturnedAt == nil
}

// Clone returns a deep copy.
func (r *RentalRecord) Clone() *RentalRecord {
	c := *r
	c.RequestedAccessory = cloneString(r.RequestedAccessory)
	if r.ReturnedAt != nil {
		t := *r.ReturnedAt
		c.ReturnedAt = &t
	}
	return &c
}

// Borrower is the identity a rental is attributed to. Only ID is guaranteed.
type Borrower struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	SeatNumber string `json:"seat_number,omitempty"`
}

// ActiveRental is an open record joined with its item and borrower.
type ActiveRental struct {
	Record        *RentalRecord `json:"record"`
	Item          *Item         `json:"item"`
	Borrower      Borrower      `json:"borrower"`
	ReturnDueTime string        `json:"return_due_time"`
	DueAt         time.Time     `json:"due_at"`
}

// IsOverdue reports whether the rental is past due at now.
func (a ActiveRental) IsOverdue(now time.Time) bool {
	return now.After(a.DueAt)
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// normalizeOptional trims s and maps blank to nil.
func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
