package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/domain"
)

// ActivityRepository handles the agency activity log.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Record appends an entry to the activity log.
func (r *ActivityRepository) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	return insertActivity(ctx, r.db, entry)
}

func insertActivity(ctx context.Context, q Querier, entry *domain.ActivityEntry) error {
	metadata := "{}"
	if len(entry.Metadata) > 0 {
		metadata = string(entry.Metadata)
	}

	query := `
		INSERT INTO activity_log (id, agency_id, user_id, actor_email, actor_name, ip_address, user_agent,
			action, entity_type, entity_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12)
	`
	_, err := q.ExecContext(ctx, query,
		entry.ID,
		entry.AgencyID,
		entry.UserID,
		entry.ActorEmail,
		entry.ActorName,
		entry.IPAddress,
		entry.UserAgent,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		metadata,
		entry.CreatedAt,
	)
	return err
}

const activityColumns = `id, agency_id, user_id, actor_email, actor_name, ip_address, user_agent,
		action, entity_type, entity_id, COALESCE(metadata, '{}'::jsonb), created_at`

// ListByAgency returns the newest entries of an agency. limit <= 0 returns all.
func (r *ActivityRepository) ListByAgency(ctx context.Context, agencyID uuid.UUID, limit int) ([]*domain.ActivityEntry, error) {
	query := `SELECT ` + activityColumns + `
		FROM activity_log
		WHERE agency_id = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)
	`
	return r.list(ctx, query, agencyID, max(limit, 0))
}

// ListByUser returns the entries a user produced across agencies.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ActivityEntry, error) {
	query := `SELECT ` + activityColumns + `
		FROM activity_log
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *ActivityRepository) list(ctx context.Context, query string, args ...any) ([]*domain.ActivityEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		err := rows.Scan(
			&e.ID,
			&e.AgencyID,
			&e.UserID,
			&e.ActorEmail,
			&e.ActorName,
			&e.IPAddress,
			&e.UserAgent,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.Metadata,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
