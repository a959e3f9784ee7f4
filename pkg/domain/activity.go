package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity actions recorded by the services.
const (
	ActionAgencyCreated           = "agency.created"
	ActionAgencyUpdated           = "agency.updated"
	ActionAgencyDeletionScheduled = "agency.deletion_scheduled"
	ActionAgencyDeletionCancelled = "agency.deletion_cancelled"
	ActionAgencyDeleted           = "agency.deleted"
	ActionAgencyExported          = "agency.exported"
	ActionMemberRoleChanged       = "member.role_changed"
	ActionMemberSuspended         = "member.suspended"
	ActionConsultationCreated     = "consultation.created"
	ActionConsultationUpdated     = "consultation.updated"
	ActionConsultationDeleted     = "consultation.deleted"
	ActionPackageCreated          = "package.created"
	ActionPackageUpdated          = "package.updated"
	ActionPackageDeleted          = "package.deleted"
	ActionInvoiceCreated          = "invoice.created"
	ActionInvoiceUpdated          = "invoice.updated"
	ActionInvoiceStatusChanged    = "invoice.status_changed"
	ActionPaymentLinkCreated      = "payment_link.created"
	ActionPaymentLinkDisabled     = "payment_link.disabled"
	ActionPaymentAccountConnected = "payment_account.connected"
	ActionPaymentAccountRefreshed = "payment_account.refreshed"
)

// ActivityEntry is one row of an agency's activity log.
// UserID, ActorEmail, ActorName, IPAddress, UserAgent and Metadata are personal
// data and are stripped when the agency is deleted. Action, EntityType and
// CreatedAt are kept.
type ActivityEntry struct {
	ID         uuid.UUID
	AgencyID   uuid.UUID
	UserID     *uuid.UUID
	ActorEmail *string
	ActorName  *string
	IPAddress  *string
	UserAgent  *string
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	Metadata   json.RawMessage
	CreatedAt  time.Time
}
