// Package handlers exposes the letter API over HTTP.
//
// Handlers are transport-thin: they bind and sanity-check input, call the
// services through the narrow interfaces below and translate results,
// access decisions included, into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
	"github.com/tbourn/cartas-cosmicas/internal/payment"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
	"github.com/tbourn/cartas-cosmicas/internal/services"
	"github.com/tbourn/cartas-cosmicas/internal/session"
)

// LetterService is the owner-facing letter API.
type LetterService interface {
	Create(ctx context.Context, ownerID string, in services.CreateLetterInput, idemKey string) (*domain.Letter, bool, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Letter, error)
	Update(ctx context.Context, ownerID, id string, in services.UpdateLetterInput) (*domain.Letter, error)
	Delete(ctx context.Context, ownerID, id string) error
	ToggleFavorite(ctx context.Context, ownerID, id string) (bool, error)
	Archive(ctx context.Context, ownerID, id string) (*domain.Letter, error)
	Unarchive(ctx context.Context, ownerID, id string) (*domain.Letter, error)
	Checkout(ctx context.Context, ownerID, id string) (*services.Checkout, error)
	ListPage(ctx context.Context, ownerID string, in services.ListLettersInput) ([]domain.Letter, int64, error)
	Stats(ctx context.Context, ownerID string) (repo.LetterStats, error)
	Meta(ctx context.Context, ownerID string) (int64, *time.Time, error)
	AccessLog(ctx context.Context, ownerID, id string, limit int) ([]domain.AccessAttempt, error)
}

// AccessService decides and performs public reads.
type AccessService interface {
	Open(ctx context.Context, req services.OpenRequest) (*services.OpenResult, error)
}

// PaymentService applies verified payment notifications.
type PaymentService interface {
	Process(ctx context.Context, body []byte, n payment.Notification) (services.ApplyResult, error)
}

// Options tunes transport details that do not belong to the services.
type Options struct {
	// PublicBaseURL prefixes share links, e.g. "https://cartas.example".
	PublicBaseURL string
	// SessionCookieSecure sets the Secure flag on the session cookie.
	SessionCookieSecure bool
	// SessionTTL is the cookie Max-Age; defaults to session.DefaultTTL.
	SessionTTL time.Duration
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	letters  LetterService
	access   AccessService
	payments PaymentService
	opts     Options
}

// New constructs Handlers bound to the given services.
func New(letters LetterService, access AccessService, payments PaymentService, opts Options) *Handlers {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	return &Handlers{letters: letters, access: access, payments: payments, opts: opts}
}
