// Package audit records security-relevant events: failed logins, refresh
// replay signals, rotation-limit and session-expiry terminations, and
// authorization denials.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crimewatch/backend/internal/audit/domain"
	"crimewatch/backend/internal/audit/repository"
)

// Recorder writes audit entries to storage and the structured log. Recording
// is best-effort: a storage failure is logged and never fails the request that
// triggered it.
type Recorder struct {
	repo   repository.Repository // nil disables persistence, log only
	logger *zap.Logger
}

// NewRecorder returns a Recorder. repo may be nil to log without persisting;
// logger must not be nil.
func NewRecorder(repo repository.Repository, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record logs and persists a security event. userID may be empty when the
// subject is unknown (e.g. a failed login for a nonexistent account).
func (r *Recorder) Record(ctx context.Context, userID, event, detail, ip string) {
	r.logger.Warn("security event",
		zap.String("event", event),
		zap.String("user_id", userID),
		zap.String("detail", detail),
		zap.String("ip", ip),
	)
	if r.repo == nil {
		return
	}
	entry := &domain.Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Event:     event,
		Detail:    detail,
		IP:        ip,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Error("audit: failed to persist entry", zap.Error(err), zap.String("event", event))
	}
}
