package domain

import (
	"time"

	"github.com/google/uuid"
)

// Template is a reusable proposal template.
type Template struct {
	ID        uuid.UUID
	AgencyID  uuid.UUID
	Name      string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Draft is a proposal being written for a client.
type Draft struct {
	ID         uuid.UUID
	AgencyID   uuid.UUID
	TemplateID *uuid.UUID
	Title      string
	Body       string
	CreatedBy  *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DraftVersion is an immutable snapshot of a draft.
type DraftVersion struct {
	ID        uuid.UUID
	DraftID   uuid.UUID
	AgencyID  uuid.UUID
	Version   int
	Body      string
	CreatedBy *uuid.UUID
	CreatedAt time.Time
}
