package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
	"github.com/tbourn/cartas-cosmicas/internal/events"
	"github.com/tbourn/cartas-cosmicas/internal/payment"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
)

func notification(id string, o payment.Outcome) payment.Notification {
	return payment.Notification{
		Provider:  payment.ProviderGeneric,
		LetterID:  id,
		PaymentID: "pay-" + id,
		Status:    string(o),
		Outcome:   o,
	}
}

func TestApply_SuccessIsIdempotent(t *testing.T) {
	f := newFixture(t, t0)
	ctx := context.Background()
	l, _, err := f.letters.Create(ctx, "u1", validInput(t0.Add(time.Hour)), "")
	require.NoError(t, err)

	f.clock.Set(t0.Add(time.Minute))
	res, err := f.payments.Apply(ctx, notification(l.ID, payment.OutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, res)

	first, err := repo.FindByID(ctx, f.db, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, first.State)
	assert.Equal(t, "pay-"+l.ID, first.PaymentID)
	require.NotNil(t, first.PaidAt)

	f.clock.Set(t0.Add(5 * time.Minute))
	res, err = f.payments.Apply(ctx, notification(l.ID, payment.OutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, res)

	second, err := repo.FindByID(ctx, f.db, l.ID)
	require.NoError(t, err)
	assert.True(t, first.PaidAt.Equal(*second.PaidAt))
	assert.Equal(t, []string{events.SubjectActivated}, f.pub.Subjects())
}

func TestApply_PaidNeverReverts(t *testing.T) {
	f := newFixture(t, t0)
	ctx := context.Background()
	l, _, err := f.letters.Create(ctx, "u1", validInput(t0.Add(time.Hour)), "")
	require.NoError(t, err)

	_, err = f.payments.Apply(ctx, notification(l.ID, payment.OutcomeSuccess))
	require.NoError(t, err)
	res, err := f.payments.Apply(ctx, notification(l.ID, payment.OutcomeFailure))
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, res)

	got, err := repo.FindByID(ctx, f.db, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus())
	assert.Equal(t, domain.LifecycleActive, got.LifecycleStatus())
}

func TestApply_SuccessAfterFailureRejected(t *testing.T) {
	f := newFixture(t, t0)
	ctx := context.Background()
	l, _, err := f.letters.Create(ctx, "u1", validInput(t0.Add(time.Hour)), "")
	require.NoError(t, err)

	res, err := f.payments.Apply(ctx, notification(l.ID, payment.OutcomeFailure))
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, res)

	res, err = f.payments.Apply(ctx, notification(l.ID, payment.OutcomeFailure))
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, res)

	res, err = f.payments.Apply(ctx, notification(l.ID, payment.OutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, ResultRejected, res)

	got, err := repo.FindByID(ctx, f.db, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, got.PaymentStatus())
	assert.Equal(t, domain.LifecycleDraft, got.LifecycleStatus())
	assert.Equal(t, []string{events.SubjectPaymentFailed}, f.pub.Subjects())
}

func TestApply_IntermediateLeavesLetterAlone(t *testing.T) {
	f := newFixture(t, t0)
	ctx := context.Background()
	l, _, err := f.letters.Create(ctx, "u1", validInput(t0.Add(time.Hour)), "")
	require.NoError(t, err)

	res, err := f.payments.Apply(ctx, notification(l.ID, payment.OutcomeIntermediate))
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, res)

	got, err := repo.FindByID(ctx, f.db, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePendingPayment, got.State)
}

func TestApply_UnknownLetter(t *testing.T) {
	f := newFixture(t, t0)
	for _, o := range []payment.Outcome{payment.OutcomeSuccess, payment.OutcomeFailure, payment.OutcomeIntermediate} {
		res, err := f.payments.Apply(context.Background(), notification("missing", o))
		assert.ErrorIs(t, err, ErrUnknownCorrelation, o)
		assert.Equal(t, ResultUnknown, res, o)
	}
}

func TestApply_DraftCanBePaid(t *testing.T) {
	f := newFixture(t, t0)
	ctx := context.Background()
	in := validInput(t0.Add(time.Hour))
	in.SaveAsDraft = true
	l, _, err := f.letters.Create(ctx, "u1", in, "")
	require.NoError(t, err)

	res, err := f.payments.Apply(ctx, notification(l.ID, payment.OutcomeSuccess))
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, res)
}

func TestProcess_RecordsRedeliveries(t *testing.T) {
	f := newFixture(t, t0)
	ctx := context.Background()
	l, _, err := f.letters.Create(ctx, "u1", validInput(t0.Add(time.Hour)), "")
	require.NoError(t, err)

	body := []byte(`{"letterId":"` + l.ID + `","status":"paid"}`)
	n := notification(l.ID, payment.OutcomeSuccess)

	res, err := f.payments.Process(ctx, body, n)
	require.NoError(t, err)
	assert.Equal(t, ResultApplied, res)
	res, err = f.payments.Process(ctx, body, n)
	require.NoError(t, err)
	assert.Equal(t, ResultDuplicate, res)

	var rows []domain.WebhookDelivery
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Deliveries)
	assert.Equal(t, string(ResultDuplicate), rows[0].Result)
	assert.Equal(t, l.ID, rows[0].CorrelationID)
}
