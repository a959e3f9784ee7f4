// Package payments creates and retires hosted payment links for invoices on
// the agency's connected payment provider account.
package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/domain"
)

// ErrLinkInactive is returned by a Provider when a link is already gone or
// deactivated on the provider side.
var ErrLinkInactive = errors.New("payment link is no longer active")

// Account is the provider's view of a connected account.
type Account struct {
	ID             string
	ChargesEnabled bool
	DisabledReason string
	CurrentlyDue   []string
	PastDue        []string
	EventuallyDue  []string
}

// AccountRequest describes the connected account created for an agency.
type AccountRequest struct {
	AgencyID uuid.UUID
	Email    string
}

// LinkRequest describes the payment link to create for an invoice.
type LinkRequest struct {
	InvoiceID   uuid.UUID
	Number      string
	Description string
	AmountCents int64
	Currency    string
}

// Link is a provider-hosted checkout page.
type Link struct {
	ID  string
	URL string
}

// Provider is the external payment processor. Connected accounts are always
// created through the provider; account ids never come from clients.
type Provider interface {
	CreateAccount(ctx context.Context, req AccountRequest) (*Account, error)
	// CreateOnboardingLink returns a provider-hosted page where the agency
	// completes the account's requirements.
	CreateOnboardingLink(ctx context.Context, accountID string) (string, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	CreatePaymentLink(ctx context.Context, accountID string, req LinkRequest) (*Link, error)
	DeactivatePaymentLink(ctx context.Context, accountID, linkID string) error
}

// AccountStatus maps provider capabilities to the local account status.
// Charges enabled wins, then an explicit disabled reason, then outstanding
// requirements. An account that cannot charge yet without either is still
// under review and also restricted.
func AccountStatus(a *Account) domain.PaymentAccountStatus {
	switch {
	case a == nil:
		return domain.PaymentAccountNone
	case a.ChargesEnabled:
		return domain.PaymentAccountActive
	case a.DisabledReason != "":
		return domain.PaymentAccountDisabled
	default:
		return domain.PaymentAccountRestricted
	}
}

// HasRequirements returns true if the provider still needs information from
// the account holder, which only onboarding can supply.
func (a *Account) HasRequirements() bool {
	return len(a.CurrentlyDue) > 0 || len(a.PastDue) > 0 || len(a.EventuallyDue) > 0
}

// ErrNotConfigured is returned by Unconfigured for every call.
var ErrNotConfigured = errors.New("payment provider is not configured")

// Unconfigured is the Provider of a deployment without provider credentials.
type Unconfigured struct{}

func (Unconfigured) CreateAccount(context.Context, AccountRequest) (*Account, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) CreateOnboardingLink(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (Unconfigured) GetAccount(context.Context, string) (*Account, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) CreatePaymentLink(context.Context, string, LinkRequest) (*Link, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) DeactivatePaymentLink(context.Context, string, string) error {
	return ErrNotConfigured
}
