package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/domain"
)

// PackagesRepository handles service package persistence.
type PackagesRepository struct {
	db *sql.DB
}

// NewPackagesRepository creates a new packages repository.
func NewPackagesRepository(db *sql.DB) *PackagesRepository {
	return &PackagesRepository{db: db}
}

const packageColumns = `id, agency_id, name, slug, description, price_cents, currency, active, created_at, updated_at`

func scanPackage(row rowScanner) (*domain.ServicePackage, error) {
	var p domain.ServicePackage
	err := row.Scan(
		&p.ID,
		&p.AgencyID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.PriceCents,
		&p.Currency,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns the agency's packages.
func (r *PackagesRepository) List(ctx context.Context, agencyID uuid.UUID, activeOnly bool) ([]*domain.ServicePackage, error) {
	query := `SELECT ` + packageColumns + `
		FROM packages
		WHERE agency_id = $1 AND (NOT $2 OR active)
		ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, agencyID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ServicePackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID retrieves a package owned by the agency.
func (r *PackagesRepository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.ServicePackage, error) {
	query := `SELECT ` + packageColumns + `
		FROM packages
		WHERE id = $1 AND agency_id = $2
	`
	return scanPackage(r.db.QueryRowContext(ctx, query, id, agencyID))
}

// Create inserts a package. A slug already used in the agency fails with
// domain.ErrSlugTaken.
func (r *PackagesRepository) Create(ctx context.Context, p *domain.ServicePackage) error {
	query := `
		INSERT INTO packages (id, agency_id, name, slug, description, price_cents, currency, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.AgencyID, p.Name, p.Slug, p.Description, p.PriceCents, p.Currency, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrSlugTaken
	}
	return err
}

// Update writes the editable fields of a package.
func (r *PackagesRepository) Update(ctx context.Context, p *domain.ServicePackage) error {
	query := `
		UPDATE packages
		SET name = $1, slug = $2, description = $3, price_cents = $4, currency = $5, active = $6, updated_at = NOW()
		WHERE id = $7 AND agency_id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		p.Name, p.Slug, p.Description, p.PriceCents, p.Currency, p.Active, p.ID, p.AgencyID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlugTaken
		}
		return err
	}
	return expectRows(result, domain.ErrPackageNotFound)
}

// Delete removes a package.
func (r *PackagesRepository) Delete(ctx context.Context, agencyID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM packages WHERE id = $1 AND agency_id = $2`, id, agencyID)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrPackageNotFound)
}
