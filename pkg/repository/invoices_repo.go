package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/agencyhub/pkg/domain"
)

// maxNumberAttempts bounds the invoice number retry loop.
const maxNumberAttempts = 5

// InvoicesRepository handles invoice persistence.
type InvoicesRepository struct {
	db *sql.DB
}

// NewInvoicesRepository creates a new invoices repository.
func NewInvoicesRepository(db *sql.DB) *InvoicesRepository {
	return &InvoicesRepository{db: db}
}

const invoiceColumns = `id, agency_id, number, consultation_id, client_name, client_email, amount_cents, currency,
		status, due_date, payment_link_id, payment_link_url, created_at, updated_at`

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.AgencyID,
		&inv.Number,
		&inv.ConsultationID,
		&inv.ClientName,
		&inv.ClientEmail,
		&inv.AmountCents,
		&inv.Currency,
		&inv.Status,
		&inv.DueDate,
		&inv.PaymentLinkID,
		&inv.PaymentLinkURL,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// List returns the agency's invoices. An empty status list returns every invoice.
func (r *InvoicesRepository) List(ctx context.Context, agencyID uuid.UUID, statuses []domain.InvoiceStatus) ([]*domain.Invoice, error) {
	var filter []string
	for _, s := range statuses {
		filter = append(filter, string(s))
	}

	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE agency_id = $1 AND ($2::text[] IS NULL OR status = ANY($2::text[]))
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, agencyID, pq.Array(filter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// GetByID retrieves an invoice owned by the agency.
func (r *InvoicesRepository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = $1 AND agency_id = $2
	`
	return scanInvoice(r.db.QueryRowContext(ctx, query, id, agencyID))
}

// NumberPrefix returns the invoice number prefix for the month of t.
func NumberPrefix(t time.Time) string {
	return "INV-" + t.UTC().Format("200601") + "-"
}

// Create inserts an invoice and assigns the next number of the month,
// INV-<yyyymm>-<seq>. Concurrent inserts that collide on the number retry.
func (r *InvoicesRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	prefix := NumberPrefix(inv.CreatedAt)

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		var count int
		err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM invoices WHERE agency_id = $1 AND number LIKE $2`,
			inv.AgencyID, prefix+"%",
		).Scan(&count)
		if err != nil {
			return err
		}
		inv.Number = fmt.Sprintf("%s%04d", prefix, count+1+attempt)

		query := `
			INSERT INTO invoices (id, agency_id, number, consultation_id, client_name, client_email, amount_cents,
				currency, status, due_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		_, err = r.db.ExecContext(ctx, query,
			inv.ID, inv.AgencyID, inv.Number, inv.ConsultationID, inv.ClientName, inv.ClientEmail,
			inv.AmountCents, inv.Currency, inv.Status, inv.DueDate, inv.CreatedAt, inv.UpdatedAt,
		)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("%w: could not allocate an invoice number", domain.ErrConflict)
}

// Update writes the editable fields of an invoice.
func (r *InvoicesRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	query := `
		UPDATE invoices
		SET consultation_id = $1, client_name = $2, client_email = $3, amount_cents = $4, currency = $5,
			due_date = $6, updated_at = NOW()
		WHERE id = $7 AND agency_id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		inv.ConsultationID, inv.ClientName, inv.ClientEmail, inv.AmountCents, inv.Currency, inv.DueDate,
		inv.ID, inv.AgencyID,
	)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrInvoiceNotFound)
}

// UpdateStatus moves the invoice from one status to another.
// Fails with domain.ErrConcurrentUpdate when the status changed in the meantime.
func (r *InvoicesRepository) UpdateStatus(ctx context.Context, agencyID, id uuid.UUID, from, to domain.InvoiceStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2 AND agency_id = $3 AND status = $4`,
		to, id, agencyID, from,
	)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrConcurrentUpdate)
}

// SetPaymentLink stores a payment link when the invoice has none. It returns
// false when another request stored a link first.
func (r *InvoicesRepository) SetPaymentLink(ctx context.Context, agencyID, id uuid.UUID, linkID, url string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET payment_link_id = $1, payment_link_url = $2, updated_at = NOW()
		WHERE id = $3 AND agency_id = $4 AND payment_link_id IS NULL
	`, linkID, url, id, agencyID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ClearPaymentLink removes the stored payment link.
func (r *InvoicesRepository) ClearPaymentLink(ctx context.Context, agencyID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET payment_link_id = NULL, payment_link_url = NULL, updated_at = NOW()
		WHERE id = $1 AND agency_id = $2
	`, id, agencyID)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrInvoiceNotFound)
}
