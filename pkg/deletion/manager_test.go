package deletion

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/domain"
)

type fakeStore struct {
	agencies map[uuid.UUID]*domain.Agency
	failOn   map[uuid.UUID]error
	executed []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		agencies: make(map[uuid.UUID]*domain.Agency),
		failOn:   make(map[uuid.UUID]error),
	}
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Agency, error) {
	a, ok := f.agencies[id]
	if !ok || a.DeletedAt != nil {
		return nil, domain.ErrAgencyNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ScheduleDeletion(_ context.Context, id uuid.UUID, at time.Time, requestedBy uuid.UUID) error {
	a, ok := f.agencies[id]
	if !ok || a.DeletionScheduledFor != nil || a.DeletedAt != nil {
		return domain.ErrConcurrentUpdate
	}
	a.DeletionScheduledFor = &at
	a.DeletionRequestedBy = &requestedBy
	return nil
}

func (f *fakeStore) CancelDeletion(_ context.Context, id uuid.UUID, now time.Time) error {
	a, ok := f.agencies[id]
	if !ok || a.DeletedAt != nil || a.DeletionScheduledFor == nil || !a.DeletionScheduledFor.After(now) {
		return domain.ErrConcurrentUpdate
	}
	a.DeletionScheduledFor = nil
	a.DeletionRequestedBy = nil
	return nil
}

func (f *fakeStore) ListExpired(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, a := range f.agencies {
		if a.DeletedAt == nil && a.DeletionScheduledFor != nil && !a.DeletionScheduledFor.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := f.agencies[ids[i]].DeletionScheduledFor, f.agencies[ids[j]].DeletionScheduledFor
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return ids[i].String() < ids[j].String()
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) ExecuteDeletion(_ context.Context, id uuid.UUID, now time.Time) (*domain.DeletionReport, error) {
	if err := f.failOn[id]; err != nil {
		return nil, err
	}
	a, ok := f.agencies[id]
	switch {
	case !ok:
		return nil, domain.ErrAgencyNotFound
	case a.DeletedAt != nil:
		return nil, domain.ErrAgencyAlreadyDeleted
	case a.DeletionScheduledFor == nil || now.Before(*a.DeletionScheduledFor):
		return nil, domain.ErrDeletionNotDue
	}
	a.DeletedAt = &now
	a.Status = domain.AgencyStatusCancelled
	f.executed = append(f.executed, id)
	return &domain.DeletionReport{AgencyID: id, DeletedAt: now}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newManager(store *fakeStore, clk *clock) *Manager {
	m := NewManager(store, access.DefaultPolicy(), nil, slog.Default())
	m.now = clk.now
	return m
}

func seed(store *fakeStore, name string) access.Caller {
	a := &domain.Agency{ID: uuid.New(), Name: name, Status: domain.AgencyStatusActive}
	store.agencies[a.ID] = a
	return access.Caller{UserID: uuid.New(), AgencyID: a.ID, Role: domain.RoleOwner}
}

func TestConfirmed(t *testing.T) {
	tests := []struct {
		typed string
		name  string
		want  bool
	}{
		{"delete Acme", "Acme", true},
		{"DELETE acme", "Acme", true},
		{"  delete acme  ", "Acme", true},
		{"delete Acme Inc", "Acme", false},
		{"delete  Acme", "Acme", false},
		{"Acme", "Acme", false},
		{"", "Acme", false},
	}
	for _, tt := range tests {
		t.Run(tt.typed, func(t *testing.T) {
			if got := Confirmed(tt.typed, tt.name); got != tt.want {
				t.Errorf("Confirmed(%q, %q) = %v, want %v", tt.typed, tt.name, got, tt.want)
			}
		})
	}
}

func TestScheduleThenCancel(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(store, clk)
	c := seed(store, "Acme")
	ctx := context.Background()

	status, err := m.Schedule(ctx, c, "DELETE acme")
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if status.State != domain.DeletionStateScheduled {
		t.Errorf("State = %q, want scheduled", status.State)
	}
	if status.DaysRemaining != 30 {
		t.Errorf("DaysRemaining = %d, want 30", status.DaysRemaining)
	}
	if want := clk.t.Add(GracePeriod); !status.ScheduledFor.Equal(want) {
		t.Errorf("ScheduledFor = %v, want %v", status.ScheduledFor, want)
	}

	if _, err := m.Schedule(ctx, c, "delete Acme"); !errors.Is(err, domain.ErrDeletionAlreadyScheduled) {
		t.Errorf("Schedule() twice error = %v, want ErrDeletionAlreadyScheduled", err)
	}

	clk.t = clk.t.Add(29 * 24 * time.Hour)
	status, err = m.Cancel(ctx, c)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if status.State != domain.DeletionStateActive {
		t.Errorf("State after cancel = %q, want active", status.State)
	}

	if _, err := m.Cancel(ctx, c); !errors.Is(err, domain.ErrDeletionNotScheduled) {
		t.Errorf("Cancel() when not scheduled error = %v, want ErrDeletionNotScheduled", err)
	}
}

func TestCancel_AfterScheduledTimeIsConflict(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(store, clk)
	c := seed(store, "Acme")
	ctx := context.Background()

	if _, err := m.Schedule(ctx, c, "delete Acme"); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	clk.t = clk.t.Add(GracePeriod)
	c.ReadOnly = true

	_, err := m.Cancel(ctx, c)
	if !errors.Is(err, domain.ErrGracePeriodElapsed) {
		t.Fatalf("Cancel() error = %v, want ErrGracePeriodElapsed", err)
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("error kind = %v, want conflict", err)
	}
}

func TestSchedule_Rejections(t *testing.T) {
	tests := []struct {
		name         string
		role         domain.Role
		confirmation string
		wantErr      error
	}{
		{"admin cannot delete", domain.RoleAdmin, "delete Acme", domain.ErrPermissionDenied},
		{"member cannot delete", domain.RoleMember, "delete Acme", domain.ErrPermissionDenied},
		{"wrong phrase", domain.RoleOwner, "delete Acme Inc", domain.ErrValidation},
		{"missing verb", domain.RoleOwner, "Acme", domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			m := newManager(store, &clock{t: time.Now()})
			c := seed(store, "Acme")
			c.Role = tt.role

			if _, err := m.Schedule(context.Background(), c, tt.confirmation); !errors.Is(err, tt.wantErr) {
				t.Errorf("Schedule() error = %v, want %v", err, tt.wantErr)
			}
			if store.agencies[c.AgencyID].DeletionScheduledFor != nil {
				t.Errorf("deletion scheduled despite error")
			}
		})
	}
}

func TestStatus(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(store, clk)
	c := seed(store, "Acme")
	ctx := context.Background()

	status, err := m.Status(ctx, c)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.State != domain.DeletionStateActive || status.ScheduledFor != nil {
		t.Errorf("Status() = %+v, want active", status)
	}

	if _, err := m.Schedule(ctx, c, "delete acme"); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	clk.t = clk.t.Add(GracePeriod - 36*time.Hour)
	status, err = m.Status(ctx, c)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.DaysRemaining != 2 {
		t.Errorf("DaysRemaining = %d, want 2", status.DaysRemaining)
	}

	clk.t = clk.t.Add(48 * time.Hour)
	status, err = m.Status(ctx, c)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.State != domain.DeletionStateExpired || status.DaysRemaining != 0 {
		t.Errorf("Status() = %+v, want expired with 0 days", status)
	}
}

func TestExecute(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(store, clk)
	c := seed(store, "Acme")
	ctx := context.Background()

	if _, err := m.Execute(ctx, c.AgencyID); !errors.Is(err, domain.ErrDeletionNotDue) {
		t.Errorf("Execute() unscheduled error = %v, want ErrDeletionNotDue", err)
	}

	if _, err := m.Schedule(ctx, c, "delete Acme"); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, err := m.Execute(ctx, c.AgencyID); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Execute() within grace error = %v, want conflict", err)
	}

	clk.t = clk.t.Add(GracePeriod)
	report, err := m.Execute(ctx, c.AgencyID)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.AgencyID != c.AgencyID {
		t.Errorf("report agency = %v, want %v", report.AgencyID, c.AgencyID)
	}

	if _, err := m.Execute(ctx, c.AgencyID); !errors.Is(err, domain.ErrAgencyAlreadyDeleted) {
		t.Errorf("Execute() replay error = %v, want ErrAgencyAlreadyDeleted", err)
	}
}

func TestSweep(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(store, clk)
	m.batch = 2
	ctx := context.Background()

	var expired []access.Caller
	for i := 0; i < 5; i++ {
		c := seed(store, "Acme")
		if _, err := m.Schedule(ctx, c, "delete Acme"); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
		expired = append(expired, c)
	}
	pending := seed(store, "Pending")
	broken := expired[0]
	store.failOn[broken.AgencyID] = errors.New("connection reset")

	clk.t = clk.t.Add(GracePeriod + time.Minute)
	if _, err := m.Schedule(ctx, pending, "delete Pending"); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	result, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(result.Deleted) != 4 {
		t.Errorf("deleted = %d, want 4", len(result.Deleted))
	}
	if len(result.Failed) != 1 || result.Failed[0].AgencyID != broken.AgencyID {
		t.Errorf("failed = %+v, want only the broken agency", result.Failed)
	}
	if store.agencies[pending.AgencyID].DeletedAt != nil {
		t.Errorf("agency still in grace period was deleted")
	}
}

func TestSweep_FailedPageDoesNotStopSweep(t *testing.T) {
	store := newFakeStore()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := newManager(store, clk)
	m.batch = 2
	ctx := context.Background()

	var callers []access.Caller
	for i := 0; i < 5; i++ {
		c := seed(store, "Acme")
		if _, err := m.Schedule(ctx, c, "delete Acme"); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
		callers = append(callers, c)
		clk.t = clk.t.Add(time.Hour)
	}
	// the two oldest schedules fill the whole first page and both fail
	for _, c := range callers[:2] {
		store.failOn[c.AgencyID] = errors.New("connection reset")
	}

	clk.t = clk.t.Add(GracePeriod)
	result, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(result.Failed) != 2 {
		t.Errorf("failed = %d, want 2", len(result.Failed))
	}
	if len(result.Deleted) != 3 {
		t.Errorf("deleted = %d, want 3", len(result.Deleted))
	}
	for _, c := range callers[2:] {
		if store.agencies[c.AgencyID].DeletedAt == nil {
			t.Errorf("agency %s not deleted", c.AgencyID)
		}
	}
}
