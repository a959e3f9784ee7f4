package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServicePackage is a priced service offering published by an agency.
type ServicePackage struct {
	ID          uuid.UUID
	AgencyID    uuid.UUID
	Name        string
	Slug        string
	Description *string
	PriceCents  int64
	Currency    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
