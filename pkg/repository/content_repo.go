package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/domain"
)

// ContentRepository reads templates, drafts and draft versions. These records
// are written elsewhere and only read here for exports.
type ContentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new content repository.
func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// ListTemplates returns the agency's templates.
func (r *ContentRepository) ListTemplates(ctx context.Context, agencyID uuid.UUID) ([]*domain.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, agency_id, name, body, created_at, updated_at
		FROM templates
		WHERE agency_id = $1
		ORDER BY created_at ASC
	`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Template
	for rows.Next() {
		var t domain.Template
		if err := rows.Scan(&t.ID, &t.AgencyID, &t.Name, &t.Body, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ListDrafts returns the agency's drafts.
func (r *ContentRepository) ListDrafts(ctx context.Context, agencyID uuid.UUID) ([]*domain.Draft, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, agency_id, template_id, title, body, created_by, created_at, updated_at
		FROM drafts
		WHERE agency_id = $1
		ORDER BY created_at ASC
	`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Draft
	for rows.Next() {
		var d domain.Draft
		if err := rows.Scan(&d.ID, &d.AgencyID, &d.TemplateID, &d.Title, &d.Body, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ListDraftVersions returns every version of every draft of the agency.
func (r *ContentRepository) ListDraftVersions(ctx context.Context, agencyID uuid.UUID) ([]*domain.DraftVersion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, draft_id, agency_id, version, body, created_by, created_at
		FROM draft_versions
		WHERE agency_id = $1
		ORDER BY draft_id, version ASC
	`, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DraftVersion
	for rows.Next() {
		var v domain.DraftVersion
		if err := rows.Scan(&v.ID, &v.DraftID, &v.AgencyID, &v.Version, &v.Body, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
