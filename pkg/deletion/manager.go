// Package deletion implements the agency deletion lifecycle: an owner
// schedules deletion, may cancel it during the grace period, and an external
// sweep executes it once the grace period has elapsed.
package deletion

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/metrics"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/activity"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
)

// GracePeriod is the time between scheduling and execution.
const GracePeriod = 30 * 24 * time.Hour

// DefaultSweepBatch is the number of expired agencies listed per sweep round.
const DefaultSweepBatch = 100

// Store is the agency storage the manager needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error)
	// ScheduleDeletion and CancelDeletion fail with domain.ErrConcurrentUpdate
	// when their precondition no longer holds.
	ScheduleDeletion(ctx context.Context, id uuid.UUID, at time.Time, requestedBy uuid.UUID) error
	CancelDeletion(ctx context.Context, id uuid.UUID, now time.Time) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ExecuteDeletion(ctx context.Context, id uuid.UUID, now time.Time) (*domain.DeletionReport, error)
}

// Status describes an agency's deletion schedule.
type Status struct {
	State         domain.DeletionState `json:"state"`
	ScheduledFor  *time.Time           `json:"scheduled_for,omitempty"`
	RequestedBy   *uuid.UUID           `json:"requested_by,omitempty"`
	DaysRemaining int                  `json:"days_remaining"`
}

// SweepFailure is an agency the sweep could not delete.
type SweepFailure struct {
	AgencyID uuid.UUID `json:"agency_id"`
	Error    string    `json:"error"`
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Deleted []*domain.DeletionReport `json:"deleted"`
	Failed  []SweepFailure           `json:"failed"`
}

// Manager runs the deletion lifecycle.
type Manager struct {
	store    Store
	policy   *access.Policy
	activity *activity.Log
	logger   *slog.Logger
	now      func() time.Time
	batch    int
}

// NewManager creates a deletion manager.
func NewManager(store Store, policy *access.Policy, log *activity.Log, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		policy:   policy,
		activity: log,
		logger:   logger,
		now:      time.Now,
		batch:    DefaultSweepBatch,
	}
}

// ConfirmationPhrase is what an owner types to schedule deletion.
func ConfirmationPhrase(agencyName string) string {
	return "delete " + agencyName
}

// Confirmed compares a typed confirmation with the expected phrase, ignoring
// case and surrounding whitespace.
func Confirmed(typed, agencyName string) bool {
	return strings.EqualFold(strings.TrimSpace(typed), ConfirmationPhrase(agencyName))
}

// Status returns the caller's agency deletion status.
func (m *Manager) Status(ctx context.Context, c access.Caller) (*Status, error) {
	if err := m.policy.Require(c, access.ActionAgencyRead); err != nil {
		return nil, err
	}
	agency, err := m.store.GetByID(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	return m.status(agency), nil
}

// Schedule starts the grace period for the caller's agency.
func (m *Manager) Schedule(ctx context.Context, c access.Caller, confirmation string) (*Status, error) {
	if err := m.policy.Require(c, access.ActionAgencyDelete); err != nil {
		return nil, err
	}

	agency, err := m.store.GetByID(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	if !Confirmed(confirmation, agency.Name) {
		return nil, domain.ErrConfirmationMismatch
	}
	if agency.DeletionState(m.now()) != domain.DeletionStateActive {
		return nil, domain.ErrDeletionAlreadyScheduled
	}

	at := m.now().UTC().Add(GracePeriod)
	if err := m.store.ScheduleDeletion(ctx, agency.ID, at, c.UserID); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, domain.ErrDeletionAlreadyScheduled
		}
		return nil, err
	}
	dispatch.FromContext(ctx).Invalidate(ctx, agency.ID, dispatch.EntityAgency)

	agency.DeletionScheduledFor = &at
	agency.DeletionRequestedBy = &c.UserID
	m.logger.Info("agency deletion scheduled",
		"agency_id", agency.ID,
		"scheduled_for", at,
		"requested_by", c.UserID,
	)
	m.activity.Record(ctx, c, domain.ActionAgencyDeletionScheduled, "agency", &agency.ID, map[string]any{
		"scheduled_for": at,
	})
	return m.status(agency), nil
}

// Cancel clears a scheduled deletion while the grace period lasts.
func (m *Manager) Cancel(ctx context.Context, c access.Caller) (*Status, error) {
	// Checked without the read-only rule so an elapsed grace period reports
	// ErrGracePeriodElapsed.
	if !m.policy.Allowed(c.Role, access.ActionAgencyDelete) {
		return nil, domain.ErrPermissionDenied
	}

	agency, err := m.store.GetByID(ctx, c.AgencyID)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	if err := cancellable(agency, now); err != nil {
		return nil, err
	}

	if err := m.store.CancelDeletion(ctx, agency.ID, now); err != nil {
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, err
		}
		// Lost a race with another cancel or with the clock.
		current, getErr := m.store.GetByID(ctx, agency.ID)
		if getErr != nil {
			return nil, getErr
		}
		if err := cancellable(current, m.now().UTC()); err != nil {
			return nil, err
		}
		return nil, err
	}
	dispatch.FromContext(ctx).Invalidate(ctx, agency.ID, dispatch.EntityAgency)

	m.logger.Info("agency deletion cancelled", "agency_id", agency.ID, "cancelled_by", c.UserID)
	m.activity.Record(ctx, c, domain.ActionAgencyDeletionCancelled, "agency", &agency.ID, map[string]any{
		"scheduled_for": agency.DeletionScheduledFor,
	})

	agency.DeletionScheduledFor = nil
	agency.DeletionRequestedBy = nil
	return m.status(agency), nil
}

func cancellable(agency *domain.Agency, now time.Time) error {
	switch agency.DeletionState(now) {
	case domain.DeletionStateActive:
		return domain.ErrDeletionNotScheduled
	case domain.DeletionStateExpired:
		return domain.ErrGracePeriodElapsed
	case domain.DeletionStateDeleted:
		return domain.ErrAgencyAlreadyDeleted
	}
	return nil
}

// Execute deletes one agency whose grace period has elapsed. It is never
// reachable by users; the sweep calls it. A replay of a committed run fails
// with domain.ErrAgencyAlreadyDeleted.
func (m *Manager) Execute(ctx context.Context, agencyID uuid.UUID) (*domain.DeletionReport, error) {
	report, err := m.store.ExecuteDeletion(ctx, agencyID, m.now().UTC())
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrConflict) {
			outcome = "conflict"
		}
		metrics.DeletionExecutions.WithLabelValues(outcome).Inc()
		return nil, err
	}

	metrics.DeletionExecutions.WithLabelValues("deleted").Inc()
	m.logger.Info("agency deleted",
		"agency_id", agencyID,
		"memberships_suspended", report.MembershipsSuspended,
		"activity_entries_scrubbed", report.ActivityEntriesScrubbed,
		"users_detached", report.UsersDetached,
	)
	return report, nil
}

// Sweep executes every expired agency. A failing agency is recorded and
// skipped; only a failure to list expired agencies aborts the sweep.
func (m *Manager) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	now := m.now().UTC()
	skip := make(map[uuid.UUID]bool)

	for {
		limit := m.batch + len(skip)
		ids, err := m.store.ListExpired(ctx, now, limit)
		if err != nil {
			return result, err
		}

		attempted := false
		for _, id := range ids {
			if skip[id] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			attempted = true

			report, err := m.Execute(ctx, id)
			if err != nil {
				skip[id] = true
				m.logger.Error("failed to delete expired agency", "agency_id", id, "error", err)
				result.Failed = append(result.Failed, SweepFailure{AgencyID: id, Error: err.Error()})
				continue
			}
			result.Deleted = append(result.Deleted, report)
		}

		// Failed agencies stay listed; limit grows with skip so every round
		// reaches past them.
		if len(ids) < limit || !attempted {
			break
		}
	}

	m.logger.Info("deletion sweep finished",
		"deleted", len(result.Deleted),
		"failed", len(result.Failed),
	)
	return result, nil
}

func (m *Manager) status(agency *domain.Agency) *Status {
	now := m.now()
	s := &Status{
		State:        agency.DeletionState(now),
		ScheduledFor: agency.DeletionScheduledFor,
		RequestedBy:  agency.DeletionRequestedBy,
	}
	if s.State == domain.DeletionStateScheduled {
		remaining := agency.DeletionScheduledFor.Sub(now)
		s.DaysRemaining = int(math.Ceil(remaining.Hours() / 24))
	}
	return s
}
