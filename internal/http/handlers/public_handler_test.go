package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/cartas-cosmicas/internal/access"
	"github.com/tbourn/cartas-cosmicas/internal/services"
	"github.com/tbourn/cartas-cosmicas/internal/session"
)

func TestOpenLetter_Grant(t *testing.T) {
	var got services.OpenRequest
	acc := &stubAccess{
		open: func(_ context.Context, req services.OpenRequest) (*services.OpenResult, error) {
			got = req
			l := sampleLetter()
			l.ViewCount = 1
			return &services.OpenResult{
				Decision:       access.Grant,
				Letter:         l,
				SessionToken:   "signed.jwt.value",
				SessionExpires: time.Now().Add(time.Hour),
			}, nil
		},
	}
	r := testRouter(New(nil, acc, nil, Options{SessionCookieSecure: true}), nil)

	w := do(t, r, http.MethodGet, "/public/letters/"+testLink+"?password=query-pw", nil, map[string]string{
		"Cookie":     session.CookieName + "=previous",
		"User-Agent": "test-agent",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := decodeMap(t, w)
	assert.Equal(t, "Abra quando sentir saudade.", m["content"])
	assert.Equal(t, float64(1), m["view_count"])

	assert.Equal(t, testLink, got.Token)
	assert.Equal(t, "query-pw", got.Password)
	assert.Equal(t, "previous", got.SessionToken)
	assert.Equal(t, "test-agent", got.UserAgent)

	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, session.CookieName+"=signed.jwt.value")
	assert.Contains(t, cookie, "HttpOnly")
	assert.Contains(t, cookie, "Secure")
	assert.Contains(t, cookie, "SameSite=Lax")

	// Header beats query.
	w = do(t, r, http.MethodGet, "/public/letters/"+testLink+"?password=query-pw", nil, map[string]string{
		HeaderLetterPassword: "header-pw",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "header-pw", got.Password)

	w = do(t, r, http.MethodPost, "/public/letters/"+testLink+"/unlock", []byte(`{"password":"body-pw"}`), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body-pw", got.Password)
}

func TestOpenLetter_Denials(t *testing.T) {
	release := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	cases := []struct {
		reason   access.Reason
		status   int
		needsPwd bool
	}{
		{access.ReasonNotFound, http.StatusNotFound, false},
		{access.ReasonNotActive, http.StatusForbidden, false},
		{access.ReasonPaymentPending, http.StatusForbidden, false},
		{access.ReasonLinkExpired, http.StatusGone, false},
		{access.ReasonViewLimitReached, http.StatusGone, false},
		{access.ReasonNotYetReleased, http.StatusTooEarly, false},
		{access.ReasonPasswordRequired, http.StatusUnauthorized, true},
		{access.ReasonIncorrectPassword, http.StatusUnauthorized, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.reason), func(t *testing.T) {
			acc := &stubAccess{
				open: func(context.Context, services.OpenRequest) (*services.OpenResult, error) {
					res := &services.OpenResult{Decision: access.Deny(tc.reason)}
					if tc.reason == access.ReasonNotYetReleased {
						res.Teaser = &services.Teaser{Title: "Para você", ReleaseDate: release}
					}
					return res, nil
				},
			}
			r := testRouter(New(nil, acc, nil, Options{}), nil)
			w := do(t, r, http.MethodGet, "/public/letters/"+testLink, nil, nil)

			require.Equal(t, tc.status, w.Code)
			m := decodeMap(t, w)
			assert.Equal(t, ErrCodeAccessDenied, m["code"])
			assert.Equal(t, string(tc.reason), m["reason"])
			assert.Equal(t, tc.needsPwd, m["requires_password"])
			assert.NotContains(t, m, "content")
			assert.Empty(t, w.Header().Get("Set-Cookie"))
			if tc.reason == access.ReasonNotYetReleased {
				assert.Equal(t, "Para você", m["title"])
				assert.Equal(t, "2026-03-01T13:00:00Z", m["release_date"])
			} else {
				assert.NotContains(t, m, "title")
			}
		})
	}
}

func TestOpenLetter_MalformedLinkSkipsService(t *testing.T) {
	acc := &stubAccess{
		open: func(context.Context, services.OpenRequest) (*services.OpenResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	r := testRouter(New(nil, acc, nil, Options{}), nil)

	for _, link := range []string{"short", strings.Repeat("a", 40), "Ab3dE5gH7j!k"} {
		w := do(t, r, http.MethodGet, "/public/letters/"+link, nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, link)
		assert.Equal(t, "NOT_FOUND", decodeMap(t, w)["reason"])
	}

	w := do(t, r, http.MethodPost, "/public/letters/"+testLink+"/unlock", []byte(`nope`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDenialStatus_UnknownReason(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, DenialStatus(access.Reason("SOMETHING_NEW")))
}
