// Package access decides whether a visitor may read a letter.
//
// Evaluate is a pure function: it performs no I/O and mutates nothing. The
// caller supplies the current time, whether the visitor's session already
// holds an authorization for the letter, and the password attempt. Side
// effects of a grant (view accounting, session update, audit) belong to the
// caller.
package access

import (
	"strings"
	"time"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

// Reason is the closed set of denial causes.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotFound          Reason = "NOT_FOUND"
	ReasonNotActive         Reason = "NOT_ACTIVE"
	ReasonPaymentPending    Reason = "PAYMENT_PENDING"
	ReasonLinkExpired       Reason = "LINK_EXPIRED"
	ReasonViewLimitReached  Reason = "VIEW_LIMIT_REACHED"
	ReasonNotYetReleased    Reason = "NOT_YET_RELEASED"
	ReasonPasswordRequired  Reason = "PASSWORD_REQUIRED"
	ReasonIncorrectPassword Reason = "INCORRECT_PASSWORD"
)

// Reasons lists every denial cause in evaluation order.
var Reasons = []Reason{
	ReasonNotFound,
	ReasonNotActive,
	ReasonPaymentPending,
	ReasonLinkExpired,
	ReasonViewLimitReached,
	ReasonNotYetReleased,
	ReasonPasswordRequired,
	ReasonIncorrectPassword,
}

// RequiresPassword reports whether the visitor can act on the denial by
// supplying a (different) password.
func (r Reason) RequiresPassword() bool {
	return r == ReasonPasswordRequired || r == ReasonIncorrectPassword
}

// Permanent reports whether the letter will never open again for this link.
func (r Reason) Permanent() bool {
	return r == ReasonLinkExpired || r == ReasonViewLimitReached
}

// Decision is the result of Evaluate.
type Decision struct {
	Granted          bool   `json:"granted"`
	Reason           Reason `json:"reason,omitempty"`
	RequiresPassword bool   `json:"requires_password"`
}

// Grant is the granted decision.
var Grant = Decision{Granted: true}

// Deny builds a denied decision for r.
func Deny(r Reason) Decision {
	return Decision{Reason: r, RequiresPassword: r.RequiresPassword()}
}

// Request carries the per-attempt inputs.
type Request struct {
	Now               time.Time
	SessionAuthorized bool
	Password          string
}

// PasswordVerifier checks an attempt against a stored hash.
type PasswordVerifier func(hash, attempt string) bool

// Evaluate runs the checks in fixed order and returns the first failure:
// existence, lifecycle, payment, expiry, view cap, release date, password.
// A session authorization only bypasses the password check.
func Evaluate(l *domain.Letter, req Request, verify PasswordVerifier) Decision {
	if l == nil {
		return Deny(ReasonNotFound)
	}
	if l.LifecycleStatus() != domain.LifecycleActive {
		return Deny(ReasonNotActive)
	}
	if l.PaymentStatus() != domain.PaymentPaid {
		return Deny(ReasonPaymentPending)
	}
	if l.ExpiresAt != nil && !req.Now.Before(*l.ExpiresAt) {
		return Deny(ReasonLinkExpired)
	}
	if l.MaxViews != nil && l.ViewCount >= *l.MaxViews {
		return Deny(ReasonViewLimitReached)
	}
	if req.Now.Before(l.ReleaseDate) {
		return Deny(ReasonNotYetReleased)
	}
	if !l.HasPassword() || req.SessionAuthorized {
		return Grant
	}
	if strings.TrimSpace(req.Password) == "" || verify == nil {
		return Deny(ReasonPasswordRequired)
	}
	if !verify(l.AccessPasswordHash, req.Password) {
		return Deny(ReasonIncorrectPassword)
	}
	return Grant
}
