// Package activity records the agency activity log on behalf of a caller.
package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Store persists activity entries.
type Store interface {
	Record(ctx context.Context, entry *domain.ActivityEntry) error
}

// Log writes activity entries. Writes are best effort: a failure is logged
// and never fails the mutation that produced it.
// A nil *Log records nothing.
type Log struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates an activity log over store.
func New(store Store, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{store: store, logger: logger, now: time.Now}
}

// Entry builds the entry the caller produced.
func Entry(c access.Caller, action, entityType string, entityID *uuid.UUID, metadata map[string]any, at time.Time) *domain.ActivityEntry {
	e := &domain.ActivityEntry{
		ID:         uuid.New(),
		AgencyID:   c.AgencyID,
		ActorEmail: optional(c.Email),
		ActorName:  optional(c.Name),
		IPAddress:  optional(c.IP),
		UserAgent:  optional(c.UserAgent),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CreatedAt:  at,
	}
	if c.UserID != uuid.Nil {
		uid := c.UserID
		e.UserID = &uid
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			e.Metadata = raw
		}
	}
	return e
}

// Record appends an entry for the caller and drops cached activity reads of
// the agency.
func (l *Log) Record(ctx context.Context, c access.Caller, action, entityType string, entityID *uuid.UUID, metadata map[string]any) {
	if l == nil || l.store == nil {
		return
	}
	entry := Entry(c, action, entityType, entityID, metadata, l.now().UTC())
	if err := l.store.Record(ctx, entry); err != nil {
		l.logger.Error("failed to record activity",
			"action", action,
			"agency_id", c.AgencyID,
			"error", err,
		)
		return
	}
	dispatch.FromContext(ctx).Invalidate(ctx, c.AgencyID, dispatch.EntityActivity)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
