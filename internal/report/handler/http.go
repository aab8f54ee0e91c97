// Package handler exposes crime report CRUD over HTTP. Every route sits
// behind the request gate; reads and writes on a specific report run the
// authorization engine against that report's ownership.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crimewatch/backend/internal/authz"
	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/report/domain"
	"crimewatch/backend/internal/report/repository"
	"crimewatch/backend/internal/server/middleware"
)

// ModuleName is the authorization module for report permissions.
const ModuleName = "reports"

type Handler struct {
	repo   repository.Repository
	engine *authz.Engine
	logger *zap.Logger
}

type reportRequest struct {
	CrimeType   string  `json:"crime_type"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	OccurredAt  string  `json:"occurred_at"`
}

type reportResponse struct {
	ID          string  `json:"id"`
	CreatedBy   string  `json:"created_by"`
	CrimeType   string  `json:"crime_type"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	OccurredAt  string  `json:"occurred_at"`
	CreatedAt   string  `json:"created_at"`
}

func NewHandler(repo repository.Repository, engine *authz.Engine, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, engine: engine, logger: logger}
}

// Register mounts the report routes on mux. The caller wraps mux (or these
// patterns) with the authentication middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/reports", h.handleList)
	mux.HandleFunc("POST /api/reports", h.handleCreate)
	mux.HandleFunc("GET /api/reports/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/reports/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/reports/{id}", h.handleDelete)
}

// handleCreate stores a new report owned by the caller. Any authenticated
// user may file a report; no grant is needed to create one's own.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	req, occurredAt, ok := h.decodeReport(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	rep := &domain.Report{
		ID:          uuid.New().String(),
		CreatedBy:   claims.Subject,
		CrimeType:   req.CrimeType,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := rep.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), rep); err != nil {
		h.writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(rep))
}

// handleList returns all reports for callers holding the reports/read grant,
// and the caller's own reports otherwise.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	limit, offset := pagination(r)

	var (
		reports []*domain.Report
		err     error
	)
	authzErr := h.engine.Authorize(r.Context(), claims, authz.Action{Module: ModuleName, Permission: "read"}, nil)
	switch authzErr {
	case nil:
		reports, err = h.repo.List(r.Context(), limit, offset)
	case authz.ErrForbidden:
		reports, err = h.repo.ListByCreator(r.Context(), claims.Subject, limit, offset)
	default:
		h.writeStorageError(w, authzErr)
		return
	}
	if err != nil {
		h.writeStorageError(w, err)
		return
	}

	out := make([]reportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toResponse(rep))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAuthorized(w, r, "read")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rep))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAuthorized(w, r, "update")
	if !ok {
		return
	}
	req, occurredAt, ok := h.decodeReport(w, r)
	if !ok {
		return
	}

	rep.CrimeType = req.CrimeType
	rep.Description = req.Description
	rep.Latitude = req.Latitude
	rep.Longitude = req.Longitude
	rep.OccurredAt = occurredAt
	rep.UpdatedAt = time.Now().UTC()
	if err := rep.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.repo.Update(r.Context(), rep); err != nil {
		h.writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rep))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.loadAuthorized(w, r, "delete")
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), rep.ID); err != nil {
		h.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadAuthorized fetches the report from the path id and authorizes the
// caller for permission against it. On failure it writes the response and
// returns ok=false.
func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request, permission string) (*domain.Report, bool) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return nil, false
	}
	id := r.PathValue("id")
	rep, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeStorageError(w, err)
		return nil, false
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, "not_found", "report not found")
		return nil, false
	}
	if err := h.engine.Authorize(r.Context(), claims, authz.Action{Module: ModuleName, Permission: permission}, rep); err != nil {
		middleware.WriteAuthzError(w, err)
		return nil, false
	}
	return rep, true
}

func (h *Handler) decodeReport(w http.ResponseWriter, r *http.Request) (reportRequest, time.Time, bool) {
	var req reportRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return req, time.Time{}, false
	}
	req.CrimeType = strings.TrimSpace(req.CrimeType)
	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "occurred_at must be RFC3339")
		return req, time.Time{}, false
	}
	return req, occurredAt.UTC(), true
}

// writeStorageError maps storage failures: transient ones (already retried
// once below this layer) get 503 so clients know to retry, the rest 500.
func (h *Handler) writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrTransient) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable, retry")
		return
	}
	h.logger.Error("report request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func toResponse(rep *domain.Report) reportResponse {
	return reportResponse{
		ID:          rep.ID,
		CreatedBy:   rep.CreatedBy,
		CrimeType:   rep.CrimeType,
		Description: rep.Description,
		Latitude:    rep.Latitude,
		Longitude:   rep.Longitude,
		OccurredAt:  rep.OccurredAt.UTC().Format(time.RFC3339),
		CreatedAt:   rep.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
