// Package api exposes the fetch and scheduler operations over HTTP for
// administrative callers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mx-pai/rss-recommendation-platform/internal/scheduler"
	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

// Fetcher runs source fetches
type Fetcher interface {
	FetchSource(ctx context.Context, sourceID int64) models.FetchResult
	FetchAllActiveSources(ctx context.Context) models.BatchResult
}

// Scheduler is the scheduler control surface
type Scheduler interface {
	Start() error
	Stop()
	Status() scheduler.Status
	PauseJob(id string) error
	ResumeJob(id string) error
	TriggerNow() error
}

// Handler serves the admin API
type Handler struct {
	fetcher   Fetcher
	scheduler Scheduler
	logger    logr.Logger
}

// NewHandler creates the admin API handler
func NewHandler(fetcher Fetcher, sched Scheduler, logger logr.Logger) *Handler {
	return &Handler{fetcher: fetcher, scheduler: sched, logger: logger}
}

// Router builds the admin routes. extra handlers (e.g. /metrics) are mounted as-is.
func (h *Handler) Router(extra map[string]http.Handler) http.Handler {
	router := mux.NewRouter()
	router.Use(RecoveryMiddleware(h.logger))
	router.Use(LoggingMiddleware(h.logger))

	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	for path, handler := range extra {
		router.Handle(path, handler)
	}

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/sources/fetch-all", h.handleFetchAll).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sources/{id:[0-9]+}/fetch", h.handleFetchSource).Methods(http.MethodPost)

	apiRouter.HandleFunc("/scheduler/status", h.handleStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/scheduler/start", h.handleStart).Methods(http.MethodPost)
	apiRouter.HandleFunc("/scheduler/stop", h.handleStop).Methods(http.MethodPost)
	apiRouter.HandleFunc("/scheduler/trigger", h.handleTrigger).Methods(http.MethodPost)
	apiRouter.HandleFunc("/scheduler/jobs/{id}/pause", h.handlePause).Methods(http.MethodPost)
	apiRouter.HandleFunc("/scheduler/jobs/{id}/resume", h.handleResume).Methods(http.MethodPost)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(router)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleFetchSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		HandleError(w, h.logger, fmt.Errorf("invalid source id: %w", err), http.StatusBadRequest)
		return
	}
	result := h.fetcher.FetchSource(r.Context(), id)
	writeJSON(w, statusForResult(result), result)
}

func (h *Handler) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	result := h.fetcher.FetchAllActiveSources(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Start(); err != nil {
		HandleError(w, h.logger, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.TriggerNow(); err != nil {
		HandleError(w, h.logger, err, schedulerErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "fetch triggered"})
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.PauseJob(mux.Vars(r)["id"]); err != nil {
		HandleError(w, h.logger, err, schedulerErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.ResumeJob(mux.Vars(r)["id"]); err != nil {
		HandleError(w, h.logger, err, schedulerErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func statusForResult(result models.FetchResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Kind {
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindDisabled:
		return http.StatusConflict
	case models.ErrorKindUnsupportedType:
		return http.StatusUnprocessableEntity
	case models.ErrorKindExtractionFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func schedulerErrorStatus(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
