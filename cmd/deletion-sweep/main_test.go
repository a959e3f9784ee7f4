package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/deletion"
	"github.com/tendant/agencyhub/pkg/domain"
)

type stubSweeper struct {
	result *deletion.SweepResult
	err    error
}

func (s stubSweeper) Sweep(context.Context) (*deletion.SweepResult, error) {
	return s.result, s.err
}

func TestSweepExitCode(t *testing.T) {
	tests := []struct {
		name    string
		sweeper stubSweeper
		want    int
	}{
		{
			name:    "all deleted",
			sweeper: stubSweeper{result: &deletion.SweepResult{Deleted: []*domain.DeletionReport{{AgencyID: uuid.New()}}}},
			want:    exitOK,
		},
		{
			name:    "nothing due",
			sweeper: stubSweeper{result: &deletion.SweepResult{}},
			want:    exitOK,
		},
		{
			name:    "some failed",
			sweeper: stubSweeper{result: &deletion.SweepResult{Failed: []deletion.SweepFailure{{AgencyID: uuid.New(), Error: "connection reset"}}}},
			want:    exitPartial,
		},
		{
			name:    "sweep failed",
			sweeper: stubSweeper{err: errors.New("database unavailable")},
			want:    exitFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sweep(context.Background(), tt.sweeper, slog.Default()); got != tt.want {
				t.Errorf("sweep() = %d, want %d", got, tt.want)
			}
		})
	}
}
