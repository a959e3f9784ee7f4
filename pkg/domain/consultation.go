package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConsultationStatus tracks a consultation from first contact to completion.
type ConsultationStatus string

const (
	ConsultationStatusNew       ConsultationStatus = "new"
	ConsultationStatusScheduled ConsultationStatus = "scheduled"
	ConsultationStatusCompleted ConsultationStatus = "completed"
	ConsultationStatusCancelled ConsultationStatus = "cancelled"
)

// Consultation is a client consultation booked with an agency.
type Consultation struct {
	ID          uuid.UUID
	AgencyID    uuid.UUID
	ClientName  string
	ClientEmail string
	ClientPhone *string
	Notes       *string
	Status      ConsultationStatus
	ScheduledAt *time.Time
	PackageID   *uuid.UUID
	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
