// Package handler exposes role and grant management over HTTP. All routes
// require the admin/manage permission; superadmins pass implicitly.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/rbac/domain"
	"crimewatch/backend/internal/rbac/repository"
)

type Handler struct {
	repo   repository.Repository
	logger *zap.Logger
}

type roleRequest struct {
	Name string `json:"name"`
}

type roleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type assignRequest struct {
	RoleID string `json:"role_id"`
}

type grantRequest struct {
	RoleID     string `json:"role_id"`
	Module     string `json:"module"`
	Permission string `json:"permission"`
}

func NewHandler(repo repository.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Register mounts the admin routes on mux. The caller wraps them with the
// authentication and authorization middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/admin/roles", h.handleCreateRole)
	mux.HandleFunc("POST /api/admin/users/{id}/roles", h.handleAssignRole)
	mux.HandleFunc("POST /api/admin/grants", h.handleAddGrant)
	mux.HandleFunc("DELETE /api/admin/grants", h.handleRemoveGrant)
}

func (h *Handler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	role := &domain.Role{ID: uuid.New().String(), Name: req.Name, CreatedAt: time.Now().UTC()}
	if err := h.repo.CreateRole(r.Context(), role); err != nil {
		h.writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, roleResponse{ID: role.ID, Name: role.Name})
}

func (h *Handler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RoleID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "role_id is required")
		return
	}
	if err := h.repo.AssignRole(r.Context(), r.PathValue("id"), req.RoleID); err != nil {
		h.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddGrant(w http.ResponseWriter, r *http.Request) {
	g, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	if err := h.repo.AddGrant(r.Context(), g); err != nil {
		h.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveGrant(w http.ResponseWriter, r *http.Request) {
	g, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	if err := h.repo.RemoveGrant(r.Context(), g); err != nil {
		h.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeGrant(w http.ResponseWriter, r *http.Request) (*domain.Grant, bool) {
	var req grantRequest
	if !decode(w, r, &req) {
		return nil, false
	}
	if req.RoleID == "" || req.Module == "" || req.Permission == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "role_id, module, and permission are required")
		return nil, false
	}
	return &domain.Grant{RoleID: req.RoleID, Module: req.Module, Permission: req.Permission}, true
}

func (h *Handler) writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrTransient) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable, retry")
		return
	}
	h.logger.Error("admin request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
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
