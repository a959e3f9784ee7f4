package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/metrics"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Invoices is the invoice storage the service needs.
type Invoices interface {
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Invoice, error)
	// SetPaymentLink stores the link only if the invoice has none and
	// reports whether it did.
	SetPaymentLink(ctx context.Context, agencyID, id uuid.UUID, linkID, url string) (bool, error)
	ClearPaymentLink(ctx context.Context, agencyID, id uuid.UUID) error
}

// Agencies is the agency storage the service needs.
type Agencies interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error)
	// BindPaymentAccount stores the agency's first connected account. It
	// fails with domain.ErrPaymentAccountTaken when another agency holds the
	// account and domain.ErrConcurrentUpdate when the agency already has one.
	BindPaymentAccount(ctx context.Context, id uuid.UUID, accountID string, status domain.PaymentAccountStatus) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, accountID string, status domain.PaymentAccountStatus) error
}

// Onboarding reports the connected account after ConnectAccount.
type Onboarding struct {
	Status domain.PaymentAccountStatus
	// URL is the provider-hosted onboarding page; empty when nothing is due.
	URL string
}

// Service manages payment links and the agency's connected account.
type Service struct {
	provider Provider
	invoices Invoices
	agencies Agencies
	policy   *access.Policy
	activity *activity.Log
	logger   *slog.Logger
}

// NewService creates a payments service.
func NewService(provider Provider, invoices Invoices, agencies Agencies, policy *access.Policy, log *activity.Log, logger *slog.Logger) *Service {
	return &Service{
		provider: provider,
		invoices: invoices,
		agencies: agencies,
		policy:   policy,
		activity: log,
		logger:   logger,
	}
}

// CreateLink returns the payment link of an invoice, creating it on the
// provider the first time. Repeated calls return the stored link without
// touching the provider.
func (s *Service) CreateLink(ctx context.Context, c access.Caller, invoiceID uuid.UUID) (string, error) {
	if err := s.policy.Require(c, access.ActionPaymentsManage); err != nil {
		return "", err
	}

	inv, err := s.invoices.GetByID(ctx, c.AgencyID, invoiceID)
	if err != nil {
		return "", err
	}
	if !inv.Payable() {
		return "", domain.ErrInvoiceNotPayable
	}
	if inv.HasPaymentLink() {
		return *inv.PaymentLinkURL, nil
	}

	accountID, err := s.paymentAccount(ctx, c.AgencyID)
	if err != nil {
		return "", err
	}

	link, err := s.provider.CreatePaymentLink(ctx, accountID, LinkRequest{
		InvoiceID:   inv.ID,
		Number:      inv.Number,
		Description: fmt.Sprintf("Invoice %s", inv.Number),
		AmountCents: inv.AmountCents,
		Currency:    strings.ToLower(inv.Currency),
	})
	if err != nil {
		return "", s.providerFailure("create_link", c.AgencyID, err)
	}
	metrics.ProviderCalls.WithLabelValues("create_link", "ok").Inc()

	stored, err := s.invoices.SetPaymentLink(ctx, c.AgencyID, inv.ID, link.ID, link.URL)
	if err != nil {
		s.retire(ctx, accountID, link.ID)
		return "", err
	}
	dispatch.FromContext(ctx).Invalidate(ctx, c.AgencyID, dispatch.EntityInvoice)

	if !stored {
		// A concurrent request stored its link first; keep that one.
		s.retire(ctx, accountID, link.ID)
		current, err := s.invoices.GetByID(ctx, c.AgencyID, inv.ID)
		if err != nil {
			return "", err
		}
		if !current.HasPaymentLink() {
			return "", domain.ErrConcurrentUpdate
		}
		return *current.PaymentLinkURL, nil
	}

	s.activity.Record(ctx, c, domain.ActionPaymentLinkCreated, "invoice", &inv.ID, map[string]any{"link_id": link.ID})
	return link.URL, nil
}

// DisableLink deactivates and forgets the invoice's payment link. A link the
// provider already considers inactive counts as disabled.
func (s *Service) DisableLink(ctx context.Context, c access.Caller, invoiceID uuid.UUID) error {
	if err := s.policy.Require(c, access.ActionPaymentsManage); err != nil {
		return err
	}
	return s.disable(ctx, c, invoiceID)
}

// DisableForInvoice is DisableLink for callers that already hold invoice
// write permission, such as voiding or repricing an invoice.
func (s *Service) DisableForInvoice(ctx context.Context, c access.Caller, invoiceID uuid.UUID) error {
	if err := s.policy.Require(c, access.ActionInvoicesWrite); err != nil {
		return err
	}
	return s.disable(ctx, c, invoiceID)
}

func (s *Service) disable(ctx context.Context, c access.Caller, invoiceID uuid.UUID) error {
	inv, err := s.invoices.GetByID(ctx, c.AgencyID, invoiceID)
	if err != nil {
		return err
	}
	if inv.PaymentLinkID == nil {
		return nil
	}

	agency, err := s.agencies.GetByID(ctx, c.AgencyID)
	if err != nil {
		return err
	}
	if agency.StripeAccountID != nil {
		err := s.provider.DeactivatePaymentLink(ctx, *agency.StripeAccountID, *inv.PaymentLinkID)
		switch {
		case errors.Is(err, ErrLinkInactive):
			s.logger.Info("payment link already inactive",
				"invoice_id", inv.ID,
				"link_id", *inv.PaymentLinkID,
			)
			metrics.ProviderCalls.WithLabelValues("disable_link", "inactive").Inc()
		case err != nil:
			return s.providerFailure("disable_link", c.AgencyID, err)
		default:
			metrics.ProviderCalls.WithLabelValues("disable_link", "ok").Inc()
		}
	}

	if err := s.invoices.ClearPaymentLink(ctx, c.AgencyID, inv.ID); err != nil {
		return err
	}
	dispatch.FromContext(ctx).Invalidate(ctx, c.AgencyID, dispatch.EntityInvoice)

	s.activity.Record(ctx, c, domain.ActionPaymentLinkDisabled, "invoice", &inv.ID, map[string]any{"link_id": *inv.PaymentLinkID})
	return nil
}

// ConnectAccount creates the agency's connected account on the provider the
// first time and reconciles the stored one afterwards. While the provider
// still needs information it also returns an onboarding link.
func (s *Service) ConnectAccount(ctx context.Context, c access.Caller) (*Onboarding, error) {
	if err := s.policy.Require(c, access.ActionPaymentsManage); err != nil {
		return nil, err
	}

	agency, err := s.agencies.GetByID(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}

	var account *Account
	if agency.StripeAccountID == nil {
		account, err = s.createAccount(ctx, c)
	} else {
		account, err = s.reconcile(ctx, c.AgencyID, *agency.StripeAccountID)
	}
	if err != nil {
		return nil, err
	}

	out := &Onboarding{Status: AccountStatus(account)}
	if out.Status != domain.PaymentAccountActive && account.HasRequirements() {
		url, err := s.provider.CreateOnboardingLink(ctx, account.ID)
		if err != nil {
			return nil, s.providerFailure("create_onboarding_link", c.AgencyID, err)
		}
		metrics.ProviderCalls.WithLabelValues("create_onboarding_link", "ok").Inc()
		out.URL = url
	}
	return out, nil
}

// RefreshStatus re-reads the connected account from the provider and stores
// the mapped status.
func (s *Service) RefreshStatus(ctx context.Context, c access.Caller) (domain.PaymentAccountStatus, error) {
	if err := s.policy.Require(c, access.ActionPaymentsManage); err != nil {
		return "", err
	}

	agency, err := s.agencies.GetByID(ctx, c.AgencyID)
	if err != nil {
		return "", err
	}
	if agency.StripeAccountID == nil {
		return "", domain.ErrNoPaymentAccount
	}

	account, err := s.reconcile(ctx, c.AgencyID, *agency.StripeAccountID)
	if err != nil {
		return "", err
	}
	status := AccountStatus(account)
	if status != agency.StripeAccountStatus {
		s.activity.Record(ctx, c, domain.ActionPaymentAccountRefreshed, "agency", &c.AgencyID, map[string]any{
			"from": agency.StripeAccountStatus,
			"to":   status,
		})
	}
	return status, nil
}

// createAccount creates a connected account and binds it to the agency. When
// a concurrent request bound one first, that account wins.
func (s *Service) createAccount(ctx context.Context, c access.Caller) (*Account, error) {
	account, err := s.provider.CreateAccount(ctx, AccountRequest{AgencyID: c.AgencyID, Email: c.Email})
	if err != nil {
		return nil, s.providerFailure("create_account", c.AgencyID, err)
	}
	metrics.ProviderCalls.WithLabelValues("create_account", "ok").Inc()

	status := AccountStatus(account)
	err = s.agencies.BindPaymentAccount(ctx, c.AgencyID, account.ID, status)
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		s.logger.Warn("connected account left unused, agency was connected concurrently",
			"agency_id", c.AgencyID,
			"account_id", account.ID,
		)
		agency, err := s.agencies.GetByID(ctx, c.AgencyID)
		if err != nil {
			return nil, err
		}
		if agency.StripeAccountID == nil {
			return nil, domain.ErrConcurrentUpdate
		}
		return s.reconcile(ctx, c.AgencyID, *agency.StripeAccountID)
	}
	if err != nil {
		return nil, err
	}
	dispatch.FromContext(ctx).Invalidate(ctx, c.AgencyID, dispatch.EntityAgency)

	s.activity.Record(ctx, c, domain.ActionPaymentAccountConnected, "agency", &c.AgencyID, map[string]any{
		"account_id": account.ID,
		"status":     status,
	})
	return account, nil
}

// reconcile re-reads the agency's stored account and persists its status.
func (s *Service) reconcile(ctx context.Context, agencyID uuid.UUID, accountID string) (*Account, error) {
	account, err := s.provider.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.providerFailure("get_account", agencyID, err)
	}
	metrics.ProviderCalls.WithLabelValues("get_account", "ok").Inc()
	stored := *account
	stored.ID = accountID
	account = &stored

	if err := s.agencies.UpdatePaymentStatus(ctx, agencyID, accountID, AccountStatus(account)); err != nil {
		return nil, err
	}
	dispatch.FromContext(ctx).Invalidate(ctx, agencyID, dispatch.EntityAgency)
	return account, nil
}

func (s *Service) paymentAccount(ctx context.Context, agencyID uuid.UUID) (string, error) {
	agency, err := s.agencies.GetByID(ctx, agencyID)
	if err != nil {
		return "", err
	}
	if agency.StripeAccountID == nil {
		return "", domain.ErrNoPaymentAccount
	}
	if !agency.PaymentsEnabled() {
		return "", domain.ErrPaymentsNotEnabled
	}
	return *agency.StripeAccountID, nil
}

// retire deactivates a link that could not be stored.
func (s *Service) retire(ctx context.Context, accountID, linkID string) {
	err := s.provider.DeactivatePaymentLink(ctx, accountID, linkID)
	if err != nil && !errors.Is(err, ErrLinkInactive) {
		s.logger.Error("failed to deactivate orphaned payment link",
			"link_id", linkID,
			"error", err,
		)
	}
}

// providerFailure logs the provider error and hides it from the caller.
func (s *Service) providerFailure(op string, agencyID uuid.UUID, err error) error {
	metrics.ProviderCalls.WithLabelValues(op, "error").Inc()
	s.logger.Error("payment provider call failed",
		"operation", op,
		"agency_id", agencyID,
		"error", err,
	)
	return domain.ErrExternalProvider
}
