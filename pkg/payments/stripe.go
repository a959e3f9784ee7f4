package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// OnboardingURLs are where Stripe sends the agency after hosted onboarding.
// RefreshURL is used when the onboarding link expired before completion.
type OnboardingURLs struct {
	ReturnURL  string
	RefreshURL string
}

// StripeProvider talks to Stripe on behalf of connected accounts.
type StripeProvider struct {
	api        *client.API
	onboarding OnboardingURLs
}

// NewStripeProvider creates a provider authenticated with the platform secret key.
func NewStripeProvider(secretKey string, onboarding OnboardingURLs) *StripeProvider {
	return &StripeProvider{api: client.New(secretKey, nil), onboarding: onboarding}
}

// CreateAccount creates an Express connected account owned by the platform.
func (p *StripeProvider) CreateAccount(ctx context.Context, req AccountRequest) (*Account, error) {
	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("agency_id", req.AgencyID.String())

	acct, err := p.api.Accounts.New(params)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return toAccount(acct), nil
}

// CreateOnboardingLink creates a single-use account onboarding link.
func (p *StripeProvider) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		Type:       stripe.String("account_onboarding"),
		ReturnURL:  stripe.String(p.onboarding.ReturnURL),
		RefreshURL: stripe.String(p.onboarding.RefreshURL),
	}
	params.Context = ctx

	link, err := p.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link.URL, nil
}

// GetAccount retrieves a connected account.
func (p *StripeProvider) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := p.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return toAccount(acct), nil
}

func toAccount(acct *stripe.Account) *Account {
	out := &Account{
		ID:             acct.ID,
		ChargesEnabled: acct.ChargesEnabled,
	}
	if req := acct.Requirements; req != nil {
		out.DisabledReason = string(req.DisabledReason)
		out.CurrentlyDue = req.CurrentlyDue
		out.PastDue = req.PastDue
		out.EventuallyDue = req.EventuallyDue
	}
	return out
}

// CreatePaymentLink creates a one-off price for the invoice amount and a
// payment link selling it, both on the connected account.
func (p *StripeProvider) CreatePaymentLink(ctx context.Context, accountID string, req LinkRequest) (*Link, error) {
	priceParams := &stripe.PriceParams{
		Currency:   stripe.String(req.Currency),
		UnitAmount: stripe.Int64(req.AmountCents),
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(req.Description),
		},
	}
	priceParams.Context = ctx
	priceParams.SetStripeAccount(accountID)
	priceParams.AddMetadata("invoice_id", req.InvoiceID.String())

	price, err := p.api.Prices.New(priceParams)
	if err != nil {
		return nil, fmt.Errorf("create price: %w", err)
	}

	linkParams := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{
				Price:    stripe.String(price.ID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	linkParams.Context = ctx
	linkParams.SetStripeAccount(accountID)
	linkParams.AddMetadata("invoice_id", req.InvoiceID.String())
	linkParams.AddMetadata("invoice_number", req.Number)

	link, err := p.api.PaymentLinks.New(linkParams)
	if err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}
	return &Link{ID: link.ID, URL: link.URL}, nil
}

// DeactivatePaymentLink turns a payment link off. A link Stripe no longer
// knows about yields ErrLinkInactive.
func (p *StripeProvider) DeactivatePaymentLink(ctx context.Context, accountID, linkID string) error {
	params := &stripe.PaymentLinkParams{Active: stripe.Bool(false)}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	link, err := p.api.PaymentLinks.Update(linkID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return ErrLinkInactive
		}
		return fmt.Errorf("deactivate payment link: %w", err)
	}
	if link.Active {
		return fmt.Errorf("deactivate payment link: link %s still active", linkID)
	}
	return nil
}
