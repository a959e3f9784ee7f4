package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/domain"
)

// MembershipsRepository handles membership data persistence.
type MembershipsRepository struct {
	db *sql.DB
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(db *sql.DB) *MembershipsRepository {
	return &MembershipsRepository{db: db}
}

const membershipColumns = `id, agency_id, user_id, role, status, created_at, updated_at, deleted_at`

func scanMembership(row rowScanner) (*domain.Membership, error) {
	var m domain.Membership
	err := row.Scan(
		&m.ID,
		&m.AgencyID,
		&m.UserID,
		&m.Role,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Create creates a new membership.
func (r *MembershipsRepository) Create(ctx context.Context, membership *domain.Membership) error {
	return r.CreateTx(ctx, r.db, membership)
}

// CreateTx creates a new membership within a transaction.
func (r *MembershipsRepository) CreateTx(ctx context.Context, q Querier, membership *domain.Membership) error {
	query := `
		INSERT INTO memberships (id, agency_id, user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		membership.ID,
		membership.AgencyID,
		membership.UserID,
		membership.Role,
		membership.Status,
		membership.CreatedAt,
		membership.UpdatedAt,
	)
	return err
}

// GetByID retrieves a membership of an agency by ID.
func (r *MembershipsRepository) GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE id = $1 AND agency_id = $2 AND deleted_at IS NULL
	`
	return scanMembership(r.db.QueryRowContext(ctx, query, id, agencyID))
}

// ListMembers retrieves all members of an agency with their profiles.
func (r *MembershipsRepository) ListMembers(ctx context.Context, agencyID uuid.UUID) ([]*domain.Member, error) {
	query := `
		SELECT
			m.id, m.agency_id, m.user_id, m.role, m.status, m.created_at, m.updated_at, m.deleted_at,
			u.email, u.name
		FROM memberships m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.agency_id = $1 AND m.deleted_at IS NULL
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		var m domain.Member
		err := rows.Scan(
			&m.ID,
			&m.AgencyID,
			&m.UserID,
			&m.Role,
			&m.Status,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.DeletedAt,
			&m.Email,
			&m.Name,
		)
		if err != nil {
			return nil, err
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// ListByUser retrieves every membership of a user with agency names.
func (r *MembershipsRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.AgencyMembership, error) {
	query := `
		SELECT
			m.id, m.agency_id, m.user_id, m.role, m.status, m.created_at, m.updated_at, m.deleted_at,
			a.name, a.slug
		FROM memberships m
		INNER JOIN agencies a ON a.id = m.agency_id
		WHERE m.user_id = $1 AND m.deleted_at IS NULL
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.AgencyMembership
	for rows.Next() {
		var result domain.AgencyMembership
		err := rows.Scan(
			&result.Membership.ID,
			&result.Membership.AgencyID,
			&result.Membership.UserID,
			&result.Membership.Role,
			&result.Membership.Status,
			&result.Membership.CreatedAt,
			&result.Membership.UpdatedAt,
			&result.Membership.DeletedAt,
			&result.AgencyName,
			&result.AgencySlug,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, &result)
	}

	return results, rows.Err()
}

// CountActiveOwners counts the active owners of an agency.
func (r *MembershipsRepository) CountActiveOwners(ctx context.Context, agencyID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM memberships
		WHERE agency_id = $1 AND role = $2 AND status = $3 AND deleted_at IS NULL
	`
	var n int
	err := r.db.QueryRowContext(ctx, query, agencyID, domain.RoleOwner, domain.MembershipStatusActive).Scan(&n)
	return n, err
}

// UpdateRole changes the role of a membership.
func (r *MembershipsRepository) UpdateRole(ctx context.Context, agencyID, id uuid.UUID, role domain.Role) error {
	query := `
		UPDATE memberships
		SET role = $1, updated_at = NOW()
		WHERE id = $2 AND agency_id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, role, id, agencyID)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrMembershipNotFound)
}

// UpdateStatus updates the status of a membership.
func (r *MembershipsRepository) UpdateStatus(ctx context.Context, agencyID, id uuid.UUID, status domain.MembershipStatus) error {
	query := `
		UPDATE memberships
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND agency_id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, status, id, agencyID)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrMembershipNotFound)
}
