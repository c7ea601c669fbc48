// Package transport exposes the core's management hooks (internal/api)
// over plain net/http, and a gRPC health server for process liveness
// checks (see SPEC_FULL.md §7 — Management Hooks). The teacher generates
// its REST surface from protobuf via grpc-gateway; that toolchain needs
// protoc, which this exercise cannot run, so the same routes are
// reimplemented directly against net/http here.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/api"
	"github.com/hirosystems/chainhook/internal/predicate"
)

// PredicateService is the subset of *api.Service the HTTP handler drives.
type PredicateService interface {
	ListPredicates(ctx context.Context) ([]api.PredicateView, error)
	GetPredicate(ctx context.Context, predicateUUID string) (api.PredicateView, error)
	RegisterPredicate(ctx context.Context, p predicate.Predicate) (api.PredicateView, error)
	DeregisterPredicate(ctx context.Context, predicateUUID string) error
}

// Handler mounts the predicate management routes on a *http.ServeMux.
type Handler struct {
	svc    PredicateService
	logger *zap.Logger
}

// NewHandler constructs a Handler over svc. logger may be nil.
func NewHandler(svc PredicateService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("transport.http")}
}

// Register mounts the predicate management routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/predicates", h.list)
	mux.HandleFunc("POST /v1/predicates", h.register)
	mux.HandleFunc("GET /v1/predicates/{uuid}", h.get)
	mux.HandleFunc("DELETE /v1/predicates/{uuid}", h.deregister)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListPredicates(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetPredicate(r.Context(), r.PathValue("uuid"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var p predicate.Predicate
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body: " + err.Error()})
		return
	}

	view, err := h.svc.RegisterPredicate(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) deregister(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeregisterPredicate(r.Context(), r.PathValue("uuid")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps a *predicate.ValidationError to 400 per SPEC_FULL.md's
// "rejecting with a typed ValidationError that a caller renders as 4xx";
// everything else is a 500: store/lifecycle failures, and also an unknown
// uuid, since this handler does not check for the wrapped
// internal/predicate/store.ErrNotFound.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *predicate.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Error("request failed", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}
