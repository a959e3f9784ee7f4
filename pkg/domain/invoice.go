package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus represents the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusViewed  InvoiceStatus = "viewed"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// Invoice is a bill sent by an agency to one of its clients.
type Invoice struct {
	ID             uuid.UUID
	AgencyID       uuid.UUID
	Number         string
	ConsultationID *uuid.UUID
	ClientName     string
	ClientEmail    string
	AmountCents    int64
	Currency       string
	Status         InvoiceStatus
	DueDate        *time.Time
	PaymentLinkID  *string
	PaymentLinkURL *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Payable returns true if a payment link may be created for the invoice.
func (i *Invoice) Payable() bool {
	switch i.Status {
	case InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusOverdue:
		return true
	}
	return false
}

// Closed returns true for paid or void invoices.
func (i *Invoice) Closed() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusVoid
}

// HasPaymentLink returns true if a provider payment link is stored.
func (i *Invoice) HasPaymentLink() bool {
	return i.PaymentLinkID != nil && i.PaymentLinkURL != nil
}
