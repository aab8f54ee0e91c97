// Package handler exposes the audit trail over HTTP for security review.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"crimewatch/backend/internal/audit/repository"
	"crimewatch/backend/internal/db"
)

type Handler struct {
	repo   repository.Repository
	logger *zap.Logger
}

type entryResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Event     string `json:"event"`
	Detail    string `json:"detail,omitempty"`
	IP        string `json:"ip,omitempty"`
	CreatedAt string `json:"created_at"`
}

func NewHandler(repo repository.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Register mounts the audit routes on mux. The caller wraps them with the
// authentication and authorization middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/audit", h.handleList)
}

// handleList returns recent entries for the user_id query parameter, newest
// first.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, db.ErrTransient) {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable, retry")
			return
		}
		h.logger.Error("audit list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:        e.ID,
			UserID:    e.UserID,
			Event:     e.Event,
			Detail:    e.Detail,
			IP:        e.IP,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
