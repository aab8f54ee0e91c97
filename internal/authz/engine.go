// Package authz evaluates access-control decisions for a resolved identity:
// superadmin override, then ownership (with one level of sub-user delegation),
// then explicit role grants. Grant and ownership data are read fresh per
// request so privilege changes take effect without re-login.
package authz

import (
	"context"
	"errors"
	"fmt"

	"crimewatch/backend/internal/audit"
	auditdomain "crimewatch/backend/internal/audit/domain"
	"crimewatch/backend/internal/db"
	"crimewatch/backend/internal/metrics"
	"crimewatch/backend/internal/security"
)

// ErrForbidden is returned when no rule allows the action; the request gate
// maps it to 403.
var ErrForbidden = errors.New("forbidden")

// Action names what the caller wants to do, as a (module, permission) pair.
type Action struct {
	Module     string
	Permission string
}

// Resource is implemented by protected resources that carry ownership. A nil
// Resource skips the ownership rule and falls through to the grant check.
type Resource interface {
	// OwnedBy returns the id of the user who created the resource.
	OwnedBy() string
}

// GrantChecker answers set-membership queries over the role/module/permission
// relation.
type GrantChecker interface {
	HasGrant(ctx context.Context, roleNames []string, module, permission string) (bool, error)
}

// ParentResolver resolves a user's delegating parent account, if any.
type ParentResolver interface {
	GetParentID(ctx context.Context, id string) (string, error)
}

// Engine evaluates authorization rules in a fixed order. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	grants   GrantChecker
	parents  ParentResolver
	recorder *audit.Recorder // nil disables audit of denials
}

// NewEngine returns an Engine. recorder may be nil.
func NewEngine(grants GrantChecker, parents ParentResolver, recorder *audit.Recorder) *Engine {
	return &Engine{grants: grants, parents: parents, recorder: recorder}
}

// Authorize decides whether claims may perform action on res. Evaluation
// order: superadmin, ownership (direct, then one delegation hop), role grant.
// Returns nil to allow, ErrForbidden to deny, or a storage error. Transient
// storage failures are retried once before surfacing; storage errors are not
// denials and must not be surfaced as 403.
func (e *Engine) Authorize(ctx context.Context, claims *security.AccessClaims, action Action, res Resource) error {
	if claims == nil {
		return ErrForbidden
	}
	if claims.Superadmin {
		metrics.AuthzDecisions.WithLabelValues("superadmin").Inc()
		return nil
	}

	if res != nil {
		owner := res.OwnedBy()
		if owner != "" {
			if owner == claims.Subject {
				metrics.AuthzDecisions.WithLabelValues("owner").Inc()
				return nil
			}
			// One hop only: the owner's direct parent. A grandparent does not
			// inherit access; the chain is deliberately not walked further.
			var parent string
			err := db.RetryTransient(ctx, func() error {
				var err error
				parent, err = e.parents.GetParentID(ctx, owner)
				return err
			})
			if err != nil {
				return err
			}
			if parent != "" && parent == claims.Subject {
				metrics.AuthzDecisions.WithLabelValues("delegate").Inc()
				return nil
			}
		}
	}

	var ok bool
	err := db.RetryTransient(ctx, func() error {
		var err error
		ok, err = e.grants.HasGrant(ctx, claims.Roles, action.Module, action.Permission)
		return err
	})
	if err != nil {
		return err
	}
	if ok {
		metrics.AuthzDecisions.WithLabelValues("grant").Inc()
		return nil
	}

	metrics.AuthzDecisions.WithLabelValues("deny").Inc()
	if e.recorder != nil {
		detail := fmt.Sprintf("%s/%s", action.Module, action.Permission)
		e.recorder.Record(ctx, claims.Subject, auditdomain.EventForbidden, detail, "")
	}
	return ErrForbidden
}
