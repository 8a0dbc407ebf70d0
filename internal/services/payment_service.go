// Package services – PaymentService
//
// PaymentService is the payment/lifecycle state machine. Verified provider
// notifications are applied as absolute outcomes:
//
//	draft | pending_payment --success--> active  (Paid, lifecycle Active)
//	draft | pending_payment --failure--> failed  (Failed, lifecycle Draft)
//
// Any other combination is a no-op. Redeliveries therefore never change a
// letter twice, and a paid letter never reverts.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
	"github.com/tbourn/cartas-cosmicas/internal/events"
	"github.com/tbourn/cartas-cosmicas/internal/metrics"
	"github.com/tbourn/cartas-cosmicas/internal/payment"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
)

// ApplyResult describes what a notification did.
type ApplyResult string

const (
	ResultApplied   ApplyResult = "applied"
	ResultDuplicate ApplyResult = "duplicate"
	ResultIgnored   ApplyResult = "ignored"
	ResultRejected  ApplyResult = "rejected"
	ResultUnknown   ApplyResult = "unknown"
)

// PaymentService applies payment outcomes to letters.
type PaymentService struct {
	DB     *gorm.DB
	Events events.Publisher

	// Now is the service clock; defaults to time.Now.
	Now func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, pub events.Publisher) *PaymentService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &PaymentService{DB: db, Events: pub, Now: time.Now}
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Process applies n and records the delivery under the SHA-256 digest of the
// raw body. ErrUnknownCorrelation is returned (with ResultUnknown) when the
// letter id does not exist; callers acknowledge it.
func (s *PaymentService) Process(ctx context.Context, body []byte, n payment.Notification) (ApplyResult, error) {
	res, err := s.Apply(ctx, n)

	sum := sha256.Sum256(body)
	rec := domain.WebhookDelivery{
		Provider:      n.Provider,
		Digest:        hex.EncodeToString(sum[:]),
		CorrelationID: truncateRunes(n.LetterID, 64),
		Outcome:       string(n.Outcome),
		Result:        string(res),
	}
	if res != "" {
		if _, lerr := repo.RecordWebhookDelivery(ctx, s.DB, rec, s.now()); lerr != nil {
			log.Ctx(ctx).Warn().Err(lerr).Str("provider", n.Provider).Msg("webhook delivery log failed")
		}
		metrics.WebhookDeliveries.WithLabelValues(n.Provider, string(res)).Inc()
	}
	return res, err
}

// Apply runs the state machine for one notification.
func (s *PaymentService) Apply(ctx context.Context, n payment.Notification) (ApplyResult, error) {
	ctx, span := otel.Tracer("services/PaymentService").Start(ctx, "Apply",
		trace.WithAttributes(
			attribute.String("letter.id", n.LetterID),
			attribute.String("payment.provider", n.Provider),
			attribute.String("payment.outcome", string(n.Outcome)),
		),
	)
	defer span.End()

	lg := log.Ctx(ctx).With().
		Str("letter_id", n.LetterID).
		Str("provider", n.Provider).
		Str("status", n.Status).
		Logger()

	var outcome repo.PaymentOutcome
	switch n.Outcome {
	case payment.OutcomeSuccess:
		outcome = repo.OutcomePaid
	case payment.OutcomeFailure:
		outcome = repo.OutcomeFailed
	default:
		// Still unknown whether the payment will settle; wait for a final event.
		if _, err := repo.FindByID(ctx, s.DB, n.LetterID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				lg.Warn().Msg("payment notification for unknown letter")
				return ResultUnknown, ErrUnknownCorrelation
			}
			return "", err
		}
		lg.Info().Msg("intermediate payment status ignored")
		return ResultIgnored, nil
	}

	l, changed, err := repo.SetPaymentOutcome(ctx, s.DB, n.LetterID, outcome, n.PaymentID, s.now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			lg.Warn().Msg("payment notification for unknown letter")
			return ResultUnknown, ErrUnknownCorrelation
		}
		return "", err
	}

	if changed {
		metrics.PaymentTransitions.WithLabelValues(string(n.Outcome), "changed").Inc()
		subject := events.SubjectActivated
		if outcome == repo.OutcomeFailed {
			subject = events.SubjectPaymentFailed
		}
		lg.Info().Str("state", string(l.State)).Msg("payment outcome applied")
		s.publish(ctx, subject, l)
		return ResultApplied, nil
	}

	metrics.PaymentTransitions.WithLabelValues(string(n.Outcome), "unchanged").Inc()
	switch {
	case outcome == repo.OutcomePaid && l.PaymentStatus() == domain.PaymentPaid,
		outcome == repo.OutcomeFailed && l.PaymentStatus() == domain.PaymentFailed:
		lg.Info().Msg("duplicate payment notification")
		return ResultDuplicate, nil
	case outcome == repo.OutcomePaid:
		lg.Warn().Str("state", string(l.State)).Msg("success reported for a failed payment, rejected")
		return ResultRejected, nil
	default:
		lg.Warn().Str("state", string(l.State)).Msg("failure reported for a paid letter, ignored")
		return ResultIgnored, nil
	}
}

func (s *PaymentService) publish(ctx context.Context, subject string, l *domain.Letter) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, subject, letterEvent(l)); err != nil {
		metrics.EventPublishFailures.WithLabelValues(subject).Inc()
		log.Ctx(ctx).Warn().Err(err).Str("subject", subject).Str("letter_id", l.ID).Msg("event publish failed")
	}
}
