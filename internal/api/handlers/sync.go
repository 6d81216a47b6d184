package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/witsync/internal/api"
	"github.com/cloo-solutions/witsync/internal/api/middleware"
	"github.com/cloo-solutions/witsync/internal/domain"
	"github.com/cloo-solutions/witsync/internal/pagination"
	"github.com/go-chi/chi/v5"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// SyncService is the part of service.SyncService the status API uses.
type SyncService interface {
	Watermark(ctx context.Context) (time.Time, error)
	WindowStart(watermark time.Time) time.Time
	Run(ctx context.Context) (*domain.SyncRun, error)
	Runs(ctx context.Context, cursor *pagination.Cursor, limit int) ([]*domain.SyncRun, error)
	GetRun(ctx context.Context, id string) (*domain.SyncRun, error)
}

type SyncHandler struct {
	service SyncService
}

func NewSyncHandler(service SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

type WatermarkResponse struct {
	Watermark    string `json:"watermark"`
	FilteredDate string `json:"filtered_date"`
	ColdStore    bool   `json:"cold_store"`
}

// Watermark reports the latest stored timestamp and the next fetch window.
func (h *SyncHandler) Watermark(w http.ResponseWriter, r *http.Request) {
	watermark, err := h.service.Watermark(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, WatermarkResponse{
		Watermark:    domain.FormatISO(watermark),
		FilteredDate: domain.FormatISO(h.service.WindowStart(watermark)),
		ColdStore:    !watermark.After(domain.EpochSentinel),
	})
}

// Trigger runs a sync and returns the finished run. A concurrent sync yields
// 409; a failed run is returned with the mapped error status.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(context.WithoutCancel(r.Context()))
	if run != nil {
		w.Header().Set(middleware.RunIDHeader, run.ID)
	}
	if err != nil {
		if run == nil {
			api.HandleError(w, err)
			return
		}
		api.JSON(w, api.DomainErrorToHTTP(err), api.SuccessResponse{Data: run})
		return
	}

	api.Success(w, http.StatusOK, run)
}

// ListRuns pages through recorded runs, newest first. The cursor of the
// response resumes after its last item.
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.service.Runs(r.Context(), cursor, limit+1)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, pagination.NewPage(runs, limit, runKey))
}

func runKey(run *domain.SyncRun) (string, time.Time) {
	return run.ID, run.StartedAt
}

func (h *SyncHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set(middleware.RunIDHeader, run.ID)
	api.Success(w, http.StatusOK, run)
}
