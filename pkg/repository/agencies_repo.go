package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/domain"
)

// AgenciesRepository handles agency data persistence.
type AgenciesRepository struct {
	db *sql.DB
}

// NewAgenciesRepository creates a new agencies repository.
func NewAgenciesRepository(db *sql.DB) *AgenciesRepository {
	return &AgenciesRepository{db: db}
}

const agencyColumns = `id, name, slug, status, deletion_scheduled_for, deletion_requested_by,
		stripe_account_id, stripe_account_status, created_at, updated_at, deleted_at`

func scanAgency(row rowScanner) (*domain.Agency, error) {
	var a domain.Agency
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Slug,
		&a.Status,
		&a.DeletionScheduledFor,
		&a.DeletionRequestedBy,
		&a.StripeAccountID,
		&a.StripeAccountStatus,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAgencyNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create creates a new agency. A duplicate slug fails with domain.ErrSlugTaken.
func (r *AgenciesRepository) Create(ctx context.Context, agency *domain.Agency) error {
	return r.CreateTx(ctx, r.db, agency)
}

// CreateTx creates a new agency within a transaction.
func (r *AgenciesRepository) CreateTx(ctx context.Context, q Querier, agency *domain.Agency) error {
	query := `
		INSERT INTO agencies (id, name, slug, status, stripe_account_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		agency.ID,
		agency.Name,
		agency.Slug,
		agency.Status,
		agency.StripeAccountStatus,
		agency.CreatedAt,
		agency.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrSlugTaken
	}
	return err
}

// CreateWithOwner creates an agency and its first owner membership in one
// transaction. A duplicate slug fails with domain.ErrSlugTaken and leaves
// nothing behind.
func (r *AgenciesRepository) CreateWithOwner(ctx context.Context, agency *domain.Agency, owner *domain.Membership) error {
	memberships := NewMembershipsRepository(r.db)
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.CreateTx(ctx, tx, agency); err != nil {
			return err
		}
		return memberships.CreateTx(ctx, tx, owner)
	})
}

// GetByID retrieves a live (not deleted) agency by ID.
func (r *AgenciesRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error) {
	query := `SELECT ` + agencyColumns + `
		FROM agencies
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanAgency(r.db.QueryRowContext(ctx, query, id))
}

// UpdateProfile updates the agency's name and slug.
func (r *AgenciesRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, slug string) error {
	query := `
		UPDATE agencies
		SET name = $1, slug = $2, updated_at = NOW()
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, name, slug, id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlugTaken
		}
		return err
	}
	return expectRows(result, domain.ErrAgencyNotFound)
}

// BindPaymentAccount attaches a connected payment account to an agency that
// has none. Fails with domain.ErrPaymentAccountTaken when another agency holds
// the account and domain.ErrConcurrentUpdate when the agency already has one.
func (r *AgenciesRepository) BindPaymentAccount(ctx context.Context, id uuid.UUID, accountID string, status domain.PaymentAccountStatus) error {
	query := `
		UPDATE agencies
		SET stripe_account_id = $1, stripe_account_status = $2, updated_at = NOW()
		WHERE id = $3 AND deleted_at IS NULL AND stripe_account_id IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, accountID, status, id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPaymentAccountTaken
		}
		return err
	}
	return expectRows(result, domain.ErrConcurrentUpdate)
}

// UpdatePaymentStatus stores the status of the agency's connected account.
// Fails with domain.ErrConcurrentUpdate when the agency no longer holds accountID.
func (r *AgenciesRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, accountID string, status domain.PaymentAccountStatus) error {
	query := `
		UPDATE agencies
		SET stripe_account_status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL AND stripe_account_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, id, accountID)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrConcurrentUpdate)
}

// ScheduleDeletion sets the deletion time if none is set.
// Fails with domain.ErrConcurrentUpdate when the agency was scheduled or
// deleted in the meantime.
func (r *AgenciesRepository) ScheduleDeletion(ctx context.Context, id uuid.UUID, at time.Time, requestedBy uuid.UUID) error {
	query := `
		UPDATE agencies
		SET deletion_scheduled_for = $1, deletion_requested_by = $2, updated_at = NOW()
		WHERE id = $3 AND deletion_scheduled_for IS NULL AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, at, requestedBy, id)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrConcurrentUpdate)
}

// CancelDeletion clears the deletion time while it is still in the future.
func (r *AgenciesRepository) CancelDeletion(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE agencies
		SET deletion_scheduled_for = NULL, deletion_requested_by = NULL, updated_at = NOW()
		WHERE id = $1 AND deletion_scheduled_for > $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrConcurrentUpdate)
}

// ListExpired returns agencies whose grace period has elapsed and that are not deleted yet.
func (r *AgenciesRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM agencies
		WHERE deletion_scheduled_for <= $1 AND deleted_at IS NULL
		ORDER BY deletion_scheduled_for ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExecuteDeletion deletes an expired agency in one transaction: the agency
// row is locked and re-checked against now, marked deleted and cancelled,
// its memberships are suspended, personal data is stripped from its activity
// log, and users pointing at it as their last active agency are detached.
//
// A replay after a committed run fails with domain.ErrAgencyAlreadyDeleted;
// a failed run rolls back completely.
func (r *AgenciesRepository) ExecuteDeletion(ctx context.Context, id uuid.UUID, now time.Time) (*domain.DeletionReport, error) {
	report := &domain.DeletionReport{AgencyID: id, DeletedAt: now}

	err := WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var scheduledFor, deletedAt *time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT deletion_scheduled_for, deleted_at FROM agencies WHERE id = $1 FOR UPDATE`, id,
		).Scan(&scheduledFor, &deletedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrAgencyNotFound
			}
			return err
		}
		if deletedAt != nil {
			return domain.ErrAgencyAlreadyDeleted
		}
		if scheduledFor == nil || now.Before(*scheduledFor) {
			return domain.ErrDeletionNotDue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE agencies
			SET deleted_at = $1, status = $2, updated_at = $1
			WHERE id = $3
		`, now, domain.AgencyStatusCancelled, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE memberships
			SET status = $1, updated_at = $2
			WHERE agency_id = $3 AND status <> $1
		`, domain.MembershipStatusSuspended, now, id)
		if err != nil {
			return err
		}
		if report.MembershipsSuspended, err = result.RowsAffected(); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE activity_log
			SET user_id = NULL, actor_email = NULL, actor_name = NULL,
				ip_address = NULL, user_agent = NULL, metadata = '{}'::jsonb
			WHERE agency_id = $1
		`, id)
		if err != nil {
			return err
		}
		if report.ActivityEntriesScrubbed, err = result.RowsAffected(); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE users
			SET last_active_agency_id = NULL, updated_at = $1
			WHERE last_active_agency_id = $2
		`, now, id)
		if err != nil {
			return err
		}
		if report.UsersDetached, err = result.RowsAffected(); err != nil {
			return err
		}

		entry := &domain.ActivityEntry{
			ID:         uuid.New(),
			AgencyID:   id,
			Action:     domain.ActionAgencyDeleted,
			EntityType: "agency",
			EntityID:   &id,
			CreatedAt:  now,
		}
		return insertActivity(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
