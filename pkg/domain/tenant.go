package domain

import (
	"time"

	"github.com/google/uuid"
)

// AgencyStatus represents the billing/lifecycle status of an agency.
type AgencyStatus string

const (
	AgencyStatusActive    AgencyStatus = "active"
	AgencyStatusPastDue   AgencyStatus = "past_due"
	AgencyStatusCancelled AgencyStatus = "cancelled"
)

// PaymentAccountStatus is the local view of the agency's payment provider account.
type PaymentAccountStatus string

const (
	PaymentAccountNone       PaymentAccountStatus = "none"
	PaymentAccountActive     PaymentAccountStatus = "active"
	PaymentAccountRestricted PaymentAccountStatus = "restricted"
	PaymentAccountDisabled   PaymentAccountStatus = "disabled"
)

// DeletionState is derived from the deletion schedule of an agency.
type DeletionState string

const (
	DeletionStateActive    DeletionState = "active"
	DeletionStateScheduled DeletionState = "scheduled"
	DeletionStateExpired   DeletionState = "expired"
	DeletionStateDeleted   DeletionState = "deleted"
)

// Agency is the tenant: the unit of data isolation.
type Agency struct {
	ID                   uuid.UUID
	Name                 string
	Slug                 string
	Status               AgencyStatus
	DeletionScheduledFor *time.Time
	DeletionRequestedBy  *uuid.UUID
	StripeAccountID      *string
	StripeAccountStatus  PaymentAccountStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// DeletionState returns the lifecycle state of the agency at now.
func (a *Agency) DeletionState(now time.Time) DeletionState {
	switch {
	case a.DeletedAt != nil:
		return DeletionStateDeleted
	case a.DeletionScheduledFor == nil:
		return DeletionStateActive
	case now.Before(*a.DeletionScheduledFor):
		return DeletionStateScheduled
	default:
		return DeletionStateExpired
	}
}

// IsReadOnly returns true once the scheduled deletion time has passed.
func (a *Agency) IsReadOnly(now time.Time) bool {
	state := a.DeletionState(now)
	return state == DeletionStateExpired || state == DeletionStateDeleted
}

// PaymentsEnabled returns true if invoices can be paid through the provider.
func (a *Agency) PaymentsEnabled() bool {
	return a.StripeAccountID != nil && a.StripeAccountStatus == PaymentAccountActive
}

// DeletionReport summarizes what an executed agency deletion changed.
type DeletionReport struct {
	AgencyID                uuid.UUID `json:"agency_id"`
	DeletedAt               time.Time `json:"deleted_at"`
	MembershipsSuspended    int64     `json:"memberships_suspended"`
	ActivityEntriesScrubbed int64     `json:"activity_entries_scrubbed"`
	UsersDetached           int64     `json:"users_detached"`
}
