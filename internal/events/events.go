// Package events publishes letter lifecycle events for downstream consumers
// (the notification mailer in particular). Publishing is best effort: when no
// broker is configured a no-op publisher is used and the service still works.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subjects.
const (
	SubjectActivated     = "cartas.letters.activated"
	SubjectPaymentFailed = "cartas.letters.payment_failed"
	SubjectOpened        = "cartas.letters.opened"

	streamName = "CARTAS_LETTERS"
)

// LetterEvent is the payload shared by all letter subjects. It never carries
// the letter content or password material.
type LetterEvent struct {
	LetterID    string    `json:"letterId"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title,omitempty"`
	UniqueLink  string    `json:"uniqueLink"`
	ReleaseDate time.Time `json:"releaseDate"`
	PaymentID   string    `json:"paymentId,omitempty"`
	ViewCount   int       `json:"viewCount,omitempty"`
}

// Envelope wraps every published message.
type Envelope struct {
	Type          string      `json:"type"`
	Version       string      `json:"version"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId"`
	Payload       LetterEvent `json:"payload"`
}

// Publisher emits letter events.
type Publisher interface {
	Publish(ctx context.Context, subject string, ev LetterEvent) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, string, LetterEvent) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

type natsPublisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewPublisher connects to url and ensures the letters stream exists. An
// empty url, a failed connection or a missing JetStream yields Noop, logged
// at warn level.
func NewPublisher(url string) Publisher {
	if url == "" {
		return Noop{}
	}
	nc, err := nats.Connect(url, nats.Name("cartas-cosmicas"), nats.Timeout(5*time.Second))
	if err != nil {
		log.Warn().Err(err).Msg("nats connect failed, using noop publisher")
		return Noop{}
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Warn().Err(err).Msg("nats jetstream unavailable, using noop publisher")
		nc.Close()
		return Noop{}
	}
	if _, err := js.StreamInfo(streamName); err != nil {
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:      streamName,
			Subjects:  []string{"cartas.letters.*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Discard:   nats.DiscardOld,
			Storage:   nats.FileStorage,
		}); err != nil {
			log.Warn().Err(err).Msg("nats stream setup failed, using noop publisher")
			nc.Close()
			return Noop{}
		}
	}
	return &natsPublisher{nc: nc, js: js}
}

// Publish implements Publisher. The JetStream message id is derived from the
// subject and letter, so the broker drops duplicates within its window.
func (p *natsPublisher) Publish(ctx context.Context, subject string, ev LetterEvent) error {
	env := Envelope{
		Type:          subject,
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.NewString(),
		Payload:       ev,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msgID := fmt.Sprintf("%s:%s", subject, ev.LetterID)
	if subject == SubjectOpened {
		msgID = env.CorrelationID
	}
	_, err = p.js.Publish(subject, b, nats.Context(ctx), nats.MsgId(msgID))
	return err
}

// Close implements Publisher.
func (p *natsPublisher) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}
