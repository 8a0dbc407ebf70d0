package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

var t0 = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// plainVerify compares attempt with hash as if the hash were the plaintext.
func plainVerify(hash, attempt string) bool { return hash == attempt }

func activeLetter() *domain.Letter {
	return &domain.Letter{
		ID:          "l1",
		State:       domain.StateActive,
		PaidAt:      ptr(t0.Add(-time.Hour)),
		ReleaseDate: t0.Add(-time.Minute),
		Content:     "secret",
	}
}

func TestEvaluate_EachCheck(t *testing.T) {
	cases := []struct {
		name   string
		letter func() *domain.Letter
		req    Request
		want   Decision
	}{
		{"missing", func() *domain.Letter { return nil }, Request{Now: t0}, Deny(ReasonNotFound)},
		{"draft", func() *domain.Letter {
			l := activeLetter()
			l.State = domain.StateDraft
			return l
		}, Request{Now: t0}, Deny(ReasonNotActive)},
		{"pending payment", func() *domain.Letter {
			l := activeLetter()
			l.State = domain.StatePendingPayment
			return l
		}, Request{Now: t0}, Deny(ReasonNotActive)},
		{"failed", func() *domain.Letter {
			l := activeLetter()
			l.State = domain.StateFailed
			return l
		}, Request{Now: t0}, Deny(ReasonNotActive)},
		{"archived", func() *domain.Letter {
			l := activeLetter()
			l.State = domain.StateArchived
			return l
		}, Request{Now: t0}, Deny(ReasonNotActive)},
		{"expired at boundary", func() *domain.Letter {
			l := activeLetter()
			l.ExpiresAt = ptr(t0)
			return l
		}, Request{Now: t0}, Deny(ReasonLinkExpired)},
		{"not yet expired", func() *domain.Letter {
			l := activeLetter()
			l.ExpiresAt = ptr(t0.Add(time.Second))
			return l
		}, Request{Now: t0}, Grant},
		{"cap consumed", func() *domain.Letter {
			l := activeLetter()
			l.MaxViews, l.ViewCount = ptr(2), 2
			return l
		}, Request{Now: t0}, Deny(ReasonViewLimitReached)},
		{"cap has one left", func() *domain.Letter {
			l := activeLetter()
			l.MaxViews, l.ViewCount = ptr(2), 1
			return l
		}, Request{Now: t0}, Grant},
		{"before release", func() *domain.Letter {
			l := activeLetter()
			l.ReleaseDate = t0.Add(time.Nanosecond)
			return l
		}, Request{Now: t0}, Deny(ReasonNotYetReleased)},
		{"exactly at release", func() *domain.Letter {
			l := activeLetter()
			l.ReleaseDate = t0
			return l
		}, Request{Now: t0}, Grant},
		{"password missing", func() *domain.Letter {
			l := activeLetter()
			l.AccessPasswordHash = "pw"
			return l
		}, Request{Now: t0}, Deny(ReasonPasswordRequired)},
		{"password blank", func() *domain.Letter {
			l := activeLetter()
			l.AccessPasswordHash = "pw"
			return l
		}, Request{Now: t0, Password: "   "}, Deny(ReasonPasswordRequired)},
		{"password wrong", func() *domain.Letter {
			l := activeLetter()
			l.AccessPasswordHash = "pw"
			return l
		}, Request{Now: t0, Password: "nope"}, Deny(ReasonIncorrectPassword)},
		{"password right", func() *domain.Letter {
			l := activeLetter()
			l.AccessPasswordHash = "pw"
			return l
		}, Request{Now: t0, Password: "pw"}, Grant},
		{"session bypasses password", func() *domain.Letter {
			l := activeLetter()
			l.AccessPasswordHash = "pw"
			return l
		}, Request{Now: t0, SessionAuthorized: true}, Grant},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.letter(), tc.req, plainVerify)
			assert.Equal(t, tc.want, got)
		})
	}
}

// A letter failing several checks reports the earliest one in the order.
func TestEvaluate_FirstFailureWins(t *testing.T) {
	l := activeLetter()
	l.AccessPasswordHash = "pw"
	l.ReleaseDate = t0.Add(time.Hour)
	l.MaxViews, l.ViewCount = ptr(1), 1
	l.ExpiresAt = ptr(t0.Add(-time.Second))

	assert.Equal(t, ReasonLinkExpired, Evaluate(l, Request{Now: t0}, plainVerify).Reason)

	l.ExpiresAt = nil
	assert.Equal(t, ReasonViewLimitReached, Evaluate(l, Request{Now: t0}, plainVerify).Reason)

	l.MaxViews = nil
	assert.Equal(t, ReasonNotYetReleased, Evaluate(l, Request{Now: t0, Password: "pw"}, plainVerify).Reason)

	l.ReleaseDate = t0
	assert.Equal(t, ReasonPasswordRequired, Evaluate(l, Request{Now: t0}, plainVerify).Reason)
}

// Session authorization never rescues a letter that fails an earlier check.
func TestEvaluate_SessionOnlySkipsPassword(t *testing.T) {
	l := activeLetter()
	l.AccessPasswordHash = "pw"
	l.MaxViews, l.ViewCount = ptr(1), 1

	d := Evaluate(l, Request{Now: t0, SessionAuthorized: true}, plainVerify)
	assert.False(t, d.Granted)
	assert.Equal(t, ReasonViewLimitReached, d.Reason)

	l.MaxViews = nil
	l.ReleaseDate = t0.Add(time.Minute)
	d = Evaluate(l, Request{Now: t0, SessionAuthorized: true}, plainVerify)
	assert.Equal(t, ReasonNotYetReleased, d.Reason)
}

func TestEvaluate_ReleaseGatingTimeline(t *testing.T) {
	release := t0.Add(time.Hour)
	l := activeLetter()
	l.ReleaseDate = release

	d := Evaluate(l, Request{Now: t0.Add(30 * time.Minute)}, plainVerify)
	require.False(t, d.Granted)
	assert.Equal(t, ReasonNotYetReleased, d.Reason)
	assert.False(t, d.RequiresPassword)

	d = Evaluate(l, Request{Now: t0.Add(61 * time.Minute)}, plainVerify)
	assert.True(t, d.Granted)
}

func TestEvaluate_NilVerifierNeverGrantsProtectedLetter(t *testing.T) {
	l := activeLetter()
	l.AccessPasswordHash = "pw"
	d := Evaluate(l, Request{Now: t0, Password: "pw"}, nil)
	assert.Equal(t, Deny(ReasonPasswordRequired), d)
}

func TestReason_Flags(t *testing.T) {
	for _, r := range Reasons {
		want := r == ReasonPasswordRequired || r == ReasonIncorrectPassword
		assert.Equal(t, want, r.RequiresPassword(), r)
		assert.Equal(t, want, Deny(r).RequiresPassword, r)
	}
	assert.True(t, ReasonLinkExpired.Permanent())
	assert.True(t, ReasonViewLimitReached.Permanent())
	assert.False(t, ReasonNotYetReleased.Permanent())
}
