package deletion

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/deletion"
)

// Manager is the deletion lifecycle the handler drives.
type Manager interface {
	Status(ctx context.Context, c access.Caller) (*deletion.Status, error)
	Schedule(ctx context.Context, c access.Caller, confirmation string) (*deletion.Status, error)
	Cancel(ctx context.Context, c access.Caller) (*deletion.Status, error)
	Sweep(ctx context.Context) (*deletion.SweepResult, error)
}

// Handler handles agency deletion endpoints.
type Handler struct {
	logger  *slog.Logger
	manager Manager
}

// NewHandler creates a new deletion handler.
func NewHandler(logger *slog.Logger, manager Manager) *Handler {
	return &Handler{logger: logger, manager: manager}
}

// ScheduleRequest carries the typed confirmation phrase, "delete <agency name>".
type ScheduleRequest struct {
	Confirmation string `json:"confirmation"`
}

// Status returns the deletion schedule of the caller's agency.
// GET /v1/agency/deletion
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	status, err := h.manager.Status(r.Context(), c)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, status)
}

// Schedule schedules the caller's agency for deletion.
// POST /v1/agency/deletion
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	var req ScheduleRequest
	if !common.Decode(w, r, h.logger, &req) {
		return
	}
	status, err := h.manager.Schedule(r.Context(), c, req.Confirmation)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, status)
}

// Cancel cancels a scheduled deletion within the grace period.
// DELETE /v1/agency/deletion
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	status, err := h.manager.Cancel(r.Context(), c)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, status)
}

// Sweep executes every deletion whose grace period has elapsed.
// POST /internal/deletion/sweep
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.manager.Sweep(r.Context())
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}
