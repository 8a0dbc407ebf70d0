// Package services – AccessService
//
// AccessService is the public read path. It loads the letter behind a link,
// asks the access policy for a decision and, only on a grant, consumes one
// view atomically, extends the visitor's session allow-list and releases the
// content. Every attempt is written to the audit log; the password itself
// never is.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/cartas-cosmicas/internal/access"
	"github.com/tbourn/cartas-cosmicas/internal/domain"
	"github.com/tbourn/cartas-cosmicas/internal/events"
	"github.com/tbourn/cartas-cosmicas/internal/metrics"
	"github.com/tbourn/cartas-cosmicas/internal/password"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
	"github.com/tbourn/cartas-cosmicas/internal/session"
)

// OpenRequest is one visitor attempt to read a letter.
type OpenRequest struct {
	Token        string
	Password     string
	SessionToken string
	SourceIP     string
	UserAgent    string
}

// Teaser is the part of a letter shown while it is still locked.
type Teaser struct {
	Title       string    `json:"title"`
	ReleaseDate time.Time `json:"release_date"`
}

// OpenResult is the outcome of Open. Letter is set only on a grant; Teaser
// only when the letter is paid but not yet released.
type OpenResult struct {
	Decision       access.Decision
	Letter         *domain.Letter
	Teaser         *Teaser
	SessionToken   string
	SessionExpires time.Time
}

// Sessions issues and reads the visitor allow-list. *session.Codec
// implements it.
type Sessions interface {
	Decode(token string) (session.Allowlist, error)
	Grant(token, letterID string) (string, time.Time, error)
}

// AccessService serves letters to visitors.
type AccessService struct {
	DB       *gorm.DB
	Sessions Sessions
	Events   events.Publisher

	// Verify checks password attempts; defaults to password.Verify.
	Verify access.PasswordVerifier
	// Now is the service clock; defaults to time.Now.
	Now func() time.Time
}

// NewAccessService constructs an AccessService.
func NewAccessService(db *gorm.DB, sessions Sessions, pub events.Publisher) *AccessService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &AccessService{
		DB:       db,
		Sessions: sessions,
		Events:   pub,
		Verify:   password.Verify,
		Now:      time.Now,
	}
}

func (s *AccessService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Open evaluates req and, on a grant, performs the view accounting. Denials
// are returned as a result, not an error; err is reserved for storage and
// signing failures.
func (s *AccessService) Open(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	ctx, span := otel.Tracer("services/AccessService").Start(ctx, "Open")
	defer span.End()

	now := s.now()
	l, err := repo.FindByUniqueLink(ctx, s.DB, req.Token)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		l = nil
	}

	authorized := false
	if l != nil && s.Sessions != nil && req.SessionToken != "" {
		if list, derr := s.Sessions.Decode(req.SessionToken); derr == nil {
			authorized = list.Contains(l.ID)
		}
	}

	d := access.Evaluate(l, access.Request{
		Now:               now,
		SessionAuthorized: authorized,
		Password:          req.Password,
	}, s.verifier())

	// Sign before consuming the view: a signing failure leaves view_count
	// untouched.
	var tok string
	var exp time.Time
	if d.Granted && s.Sessions != nil {
		if tok, exp, err = s.Sessions.Grant(req.SessionToken, l.ID); err != nil {
			return nil, err
		}
	}

	if d.Granted {
		updated, err := repo.IncrementViewCountAtomic(ctx, s.DB, l.ID, now)
		switch {
		case err == nil:
			l = updated
		case errors.Is(err, repo.ErrViewCapReached):
			// Lost the race for the last view, or the letter changed state
			// between load and update. Re-evaluate against fresh data.
			d = s.reevaluate(ctx, l.ID, now, authorized, req.Password)
		default:
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Bool("access.granted", d.Granted),
		attribute.String("access.reason", string(d.Reason)),
	)

	res := &OpenResult{Decision: d}
	s.audit(ctx, l, req, d, now)

	if !d.Granted {
		metrics.AccessDecisions.WithLabelValues(string(d.Reason)).Inc()
		if d.Reason == access.ReasonNotYetReleased && l != nil {
			res.Teaser = &Teaser{Title: l.Title, ReleaseDate: l.ReleaseDate}
		}
		return res, nil
	}

	metrics.AccessDecisions.WithLabelValues("granted").Inc()
	res.Letter = l
	res.SessionToken, res.SessionExpires = tok, exp
	s.publish(ctx, events.SubjectOpened, l)
	return res, nil
}

func (s *AccessService) verifier() access.PasswordVerifier {
	if s.Verify != nil {
		return s.Verify
	}
	return password.Verify
}

func (s *AccessService) reevaluate(ctx context.Context, id string, now time.Time, authorized bool, attempt string) access.Decision {
	fresh, err := repo.FindByID(ctx, s.DB, id)
	if err != nil {
		fresh = nil
	}
	d := access.Evaluate(fresh, access.Request{Now: now, SessionAuthorized: authorized, Password: attempt}, s.verifier())
	if d.Granted {
		return access.Deny(access.ReasonViewLimitReached)
	}
	return d
}

func (s *AccessService) audit(ctx context.Context, l *domain.Letter, req OpenRequest, d access.Decision, now time.Time) {
	a := &domain.AccessAttempt{
		LinkToken:   truncateRunes(req.Token, 64),
		SourceIP:    truncateRunes(req.SourceIP, 64),
		UserAgent:   truncateRunes(req.UserAgent, 512),
		Success:     d.Granted,
		Reason:      string(d.Reason),
		RequestedAt: now,
	}
	if l != nil {
		a.LetterID = l.ID
	}
	if err := repo.RecordAccessAttempt(ctx, s.DB, a); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("letter_id", a.LetterID).Msg("audit write failed")
	}
}

func (s *AccessService) publish(ctx context.Context, subject string, l *domain.Letter) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, subject, letterEvent(l)); err != nil {
		metrics.EventPublishFailures.WithLabelValues(subject).Inc()
		log.Ctx(ctx).Warn().Err(err).Str("subject", subject).Str("letter_id", l.ID).Msg("event publish failed")
	}
}

func letterEvent(l *domain.Letter) events.LetterEvent {
	return events.LetterEvent{
		LetterID:    l.ID,
		OwnerID:     l.OwnerID,
		Title:       l.Title,
		UniqueLink:  l.UniqueLink,
		ReleaseDate: l.ReleaseDate,
		PaymentID:   l.PaymentID,
		ViewCount:   l.ViewCount,
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
