package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/domain"
)

// ConsultationsRepository handles consultation persistence. Every statement
// is filtered by agency.
type ConsultationsRepository struct {
	db *sql.DB
}

// NewConsultationsRepository creates a new consultations repository.
func NewConsultationsRepository(db *sql.DB) *ConsultationsRepository {
	return &ConsultationsRepository{db: db}
}

const consultationColumns = `id, agency_id, client_name, client_email, client_phone, notes, status,
		scheduled_at, package_id, created_by, created_at, updated_at`

func scanConsultation(row rowScanner) (*domain.Consultation, error) {
	var c domain.Consultation
	err := row.Scan(
		&c.ID,
		&c.AgencyID,
		&c.ClientName,
		&c.ClientEmail,
		&c.ClientPhone,
		&c.Notes,
		&c.Status,
		&c.ScheduledAt,
		&c.PackageID,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConsultationNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns an agency's consultations, optionally filtered by status.
func (r *ConsultationsRepository) List(ctx context.Context, agencyID uuid.UUID, status *domain.ConsultationStatus) ([]*domain.Consultation, error) {
	query := `SELECT ` + consultationColumns + `
		FROM consultations
		WHERE agency_id = $1 AND ($2::text IS NULL OR status = $2::text)
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, agencyID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByID retrieves a consultation owned by the agency.
func (r *ConsultationsRepository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Consultation, error) {
	query := `SELECT ` + consultationColumns + `
		FROM consultations
		WHERE id = $1 AND agency_id = $2
	`
	return scanConsultation(r.db.QueryRowContext(ctx, query, id, agencyID))
}

// Create inserts a consultation.
func (r *ConsultationsRepository) Create(ctx context.Context, c *domain.Consultation) error {
	query := `
		INSERT INTO consultations (id, agency_id, client_name, client_email, client_phone, notes, status,
			scheduled_at, package_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.AgencyID, c.ClientName, c.ClientEmail, c.ClientPhone, c.Notes, c.Status,
		c.ScheduledAt, c.PackageID, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// Update writes the editable fields of a consultation.
func (r *ConsultationsRepository) Update(ctx context.Context, c *domain.Consultation) error {
	query := `
		UPDATE consultations
		SET client_name = $1, client_email = $2, client_phone = $3, notes = $4,
			scheduled_at = $5, package_id = $6, status = $7, updated_at = NOW()
		WHERE id = $8 AND agency_id = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		c.ClientName, c.ClientEmail, c.ClientPhone, c.Notes, c.ScheduledAt, c.PackageID, c.Status,
		c.ID, c.AgencyID,
	)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrConsultationNotFound)
}

// Delete removes a consultation.
func (r *ConsultationsRepository) Delete(ctx context.Context, agencyID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM consultations WHERE id = $1 AND agency_id = $2`, id, agencyID)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrConsultationNotFound)
}
