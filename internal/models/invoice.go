package models

import "time"

type Invoice struct {
	InvoiceID         string     `json:"invoice_id"`
	AgencyID          string     `json:"agency_id"`
	ClientID          string     `json:"client_id"`
	AppointmentID     string     `json:"appointment_id"`
	ExternalInvoiceID string     `json:"external_invoice_id"`
	Status            string     `json:"status"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	Amount            *float64   `json:"amount,omitempty"`
	Currency          *string    `json:"currency,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}

const (
	InvoiceDraft   = "draft"
	InvoiceSent    = "sent"
	InvoicePaid    = "paid"
	InvoiceOverdue = "overdue"
	InvoiceVoid    = "void"
)

// IsOverdue reports whether the invoice is sent and past its due date.
func (i Invoice) IsOverdue(now time.Time) bool {
	return i.Status == InvoiceSent && i.DueDate != nil && i.DueDate.Before(now)
}
