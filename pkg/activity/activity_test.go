package activity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/domain"
)

type fakeStore struct {
	entries []*domain.ActivityEntry
	err     error
}

func (f *fakeStore) Record(_ context.Context, e *domain.ActivityEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func TestEntry_CopiesCaller(t *testing.T) {
	c := access.Caller{
		UserID:    uuid.New(),
		AgencyID:  uuid.New(),
		Email:     "owner@example.com",
		IP:        "203.0.113.1",
		UserAgent: "curl/8",
	}
	id := uuid.New()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	e := Entry(c, domain.ActionInvoiceCreated, "invoice", &id, map[string]any{"number": "INV-1"}, at)

	if e.AgencyID != c.AgencyID {
		t.Errorf("AgencyID = %v, want %v", e.AgencyID, c.AgencyID)
	}
	if e.UserID == nil || *e.UserID != c.UserID {
		t.Errorf("UserID = %v, want %v", e.UserID, c.UserID)
	}
	if e.ActorEmail == nil || *e.ActorEmail != c.Email {
		t.Errorf("ActorEmail = %v", e.ActorEmail)
	}
	if e.ActorName != nil {
		t.Errorf("ActorName = %v, want nil for empty name", *e.ActorName)
	}
	if !e.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, at)
	}

	var meta map[string]string
	if err := json.Unmarshal(e.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["number"] != "INV-1" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestEntry_NoMetadata(t *testing.T) {
	e := Entry(access.Caller{AgencyID: uuid.New()}, domain.ActionAgencyUpdated, "agency", nil, nil, time.Now())
	if e.Metadata != nil {
		t.Errorf("Metadata = %s, want nil", e.Metadata)
	}
	if e.UserID != nil {
		t.Errorf("UserID = %v, want nil", e.UserID)
	}
}

func TestLog_RecordFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	l := New(store, nil)

	// must not panic or return anything
	l.Record(context.Background(), access.Caller{AgencyID: uuid.New()}, domain.ActionAgencyUpdated, "agency", nil, nil)

	if len(store.entries) != 0 {
		t.Errorf("entries = %d, want 0", len(store.entries))
	}
}

func TestLog_Record(t *testing.T) {
	store := &fakeStore{}
	l := New(store, nil)

	l.Record(context.Background(), access.Caller{AgencyID: uuid.New()}, domain.ActionPackageCreated, "package", nil, nil)

	if len(store.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(store.entries))
	}
	if store.entries[0].Action != domain.ActionPackageCreated {
		t.Errorf("Action = %q", store.entries[0].Action)
	}
}

func TestLog_NilIsNoop(t *testing.T) {
	var l *Log
	l.Record(context.Background(), access.Caller{}, domain.ActionAgencyUpdated, "agency", nil, nil)
}
