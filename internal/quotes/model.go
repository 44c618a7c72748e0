package quotes

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrQuoteNotFound is returned when a quote is not found
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrNoLineItems is returned when a quote has no line items
	ErrNoLineItems = errors.New("at least one line item is required")

	// ErrInvalidLineItem is returned for a malformed line item
	ErrInvalidLineItem = errors.New("line item needs a description, positive quantity, and non-negative price")

	// ErrInvalidStatus is returned for an unknown quote status
	ErrInvalidStatus = errors.New("invalid quote status")

	// ErrIllegalStatusChange is returned for a disallowed lifecycle jump
	ErrIllegalStatusChange = errors.New("illegal quote status change")
)

// QuoteStatus tracks a quote through its lifecycle.
type QuoteStatus string

const (
	StatusDraft    QuoteStatus = "DRAFT"
	StatusSent     QuoteStatus = "SENT"
	StatusAccepted QuoteStatus = "ACCEPTED"
	StatusDeclined QuoteStatus = "DECLINED"
)

var validStatuses = map[QuoteStatus]bool{
	StatusDraft:    true,
	StatusSent:     true,
	StatusAccepted: true,
	StatusDeclined: true,
}

// statusTransitions encodes the quote lifecycle: drafts are sent, sent quotes
// are accepted or declined, accepted and declined are terminal.
var statusTransitions = map[QuoteStatus][]QuoteStatus{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusAccepted, StatusDeclined},
	StatusAccepted: {},
	StatusDeclined: {},
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
func CanTransition(from, to QuoteStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LineItem is one priced row of a quote. Prices are integer cents.
type LineItem struct {
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// TotalCents is the line total.
func (li LineItem) TotalCents() int64 {
	return int64(li.Quantity) * li.UnitPriceCents
}

// Quote is a priced treatment proposal for a patient.
type Quote struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenant_id"`
	PatientID     string      `json:"patient_id"`
	Title         string      `json:"title"`
	Currency      string      `json:"currency"`
	Status        QuoteStatus `json:"status"`
	LineItems     []LineItem  `json:"line_items"`
	DiscountCents int64       `json:"discount_cents"`
	SubtotalCents int64       `json:"subtotal_cents"`
	TotalCents    int64       `json:"total_cents"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Recalculate refreshes the computed totals from the line items. The total
// never goes below zero regardless of discount.
func (q *Quote) Recalculate() {
	var subtotal int64
	for _, li := range q.LineItems {
		subtotal += li.TotalCents()
	}
	q.SubtotalCents = subtotal
	total := subtotal - q.DiscountCents
	if total < 0 {
		total = 0
	}
	q.TotalCents = total
}

// CreateQuoteRequest is the request body for creating a quote.
type CreateQuoteRequest struct {
	PatientID     string     `json:"patient_id"`
	Title         string     `json:"title"`
	Currency      string     `json:"currency"`
	LineItems     []LineItem `json:"line_items"`
	DiscountCents int64      `json:"discount_cents"`
}

// Validate checks the create request.
func (r *CreateQuoteRequest) Validate() error {
	if strings.TrimSpace(r.PatientID) == "" {
		return errors.New("patient id is required")
	}
	if len(r.LineItems) == 0 {
		return ErrNoLineItems
	}
	for _, li := range r.LineItems {
		if strings.TrimSpace(li.Description) == "" || li.Quantity <= 0 || li.UnitPriceCents < 0 {
			return ErrInvalidLineItem
		}
	}
	if r.Currency == "" {
		r.Currency = "USD"
	}
	if r.DiscountCents < 0 {
		return errors.New("discount must be non-negative")
	}
	return nil
}
