package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tendant/agencyhub/internal/http/features/common"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/export"
)

// Service builds export documents.
type Service interface {
	ExportAgency(ctx context.Context, c access.Caller) (*export.AgencyExport, error)
	ExportUser(ctx context.Context, c access.Caller) (*export.UserExport, error)
}

// Handler handles data export endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new export handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Agency downloads the export of the caller's agency.
// GET /v1/agency/export
func (h *Handler) Agency(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	doc, err := h.service.ExportAgency(r.Context(), c)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	attachment(w, fmt.Sprintf("agency-%s-export.json", doc.Agency.Slug))
	httputil.JSON(w, http.StatusOK, doc)
}

// User downloads the caller's own data.
// GET /v1/me/export
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	c, ok := common.Caller(w, r)
	if !ok {
		return
	}
	doc, err := h.service.ExportUser(r.Context(), c)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}
	attachment(w, fmt.Sprintf("user-%s-export.json", doc.User.ID))
	httputil.JSON(w, http.StatusOK, doc)
}

func attachment(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
}
