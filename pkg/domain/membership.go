package domain

import (
	"time"

	"github.com/google/uuid"
)

// MembershipStatus represents the state of a user's membership.
type MembershipStatus string

const (
	MembershipStatusInvited   MembershipStatus = "invited"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusSuspended MembershipStatus = "suspended"
)

// Role is the member's role inside an agency.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid returns true for known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Membership represents a user's membership in an agency.
type Membership struct {
	ID        uuid.UUID
	AgencyID  uuid.UUID
	UserID    uuid.UUID
	Role      Role
	Status    MembershipStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsActive returns true if the membership is active.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipStatusActive && m.DeletedAt == nil
}

// Member is a membership joined with the user profile, for member listings.
type Member struct {
	Membership
	Email string
	Name  *string
}

// AgencyMembership is a membership joined with its agency, for a user's
// view across agencies.
type AgencyMembership struct {
	Membership
	AgencyName string
	AgencySlug string
}
