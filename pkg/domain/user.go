package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account of a person acting on one or more agencies.
type User struct {
	ID                 uuid.UUID
	Email              string
	Name               *string
	LastActiveAgencyID *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}
