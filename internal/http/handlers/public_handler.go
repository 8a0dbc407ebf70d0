// Public letter HTTP handlers.
//
// This file exposes the recipient-facing read path:
//   - GET  /letter/{link}?password=         (share link)
//   - GET  /public/letters/{link}?password=
//   - POST /public/letters/{link}/unlock    (password in the JSON body)
//
// Every request yields either the letter content or a DenialResponse; the
// content never travels with a denial. Grants refresh the signed session
// cookie so the recipient is not asked for the password again.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/cartas-cosmicas/internal/access"
	"github.com/tbourn/cartas-cosmicas/internal/http/middleware"
	"github.com/tbourn/cartas-cosmicas/internal/services"
	"github.com/tbourn/cartas-cosmicas/internal/session"
)

// HeaderLetterPassword lets API clients send the password without putting it
// in the URL.
const HeaderLetterPassword = "X-Letter-Password"

// denialStatus separates "needs more input" (401, 425) from "permanently
// inaccessible" (403, 404, 410).
var denialStatus = map[access.Reason]int{
	access.ReasonNotFound:          http.StatusNotFound,
	access.ReasonNotActive:         http.StatusForbidden,
	access.ReasonPaymentPending:    http.StatusForbidden,
	access.ReasonLinkExpired:       http.StatusGone,
	access.ReasonViewLimitReached:  http.StatusGone,
	access.ReasonNotYetReleased:    http.StatusTooEarly,
	access.ReasonPasswordRequired:  http.StatusUnauthorized,
	access.ReasonIncorrectPassword: http.StatusUnauthorized,
}

var denialMessage = map[access.Reason]string{
	access.ReasonNotFound:          "letter not found",
	access.ReasonNotActive:         "letter is not available",
	access.ReasonPaymentPending:    "letter is awaiting payment",
	access.ReasonLinkExpired:       "link has expired",
	access.ReasonViewLimitReached:  "view limit reached",
	access.ReasonNotYetReleased:    "letter is not released yet",
	access.ReasonPasswordRequired:  "password required",
	access.ReasonIncorrectPassword: "incorrect password",
}

// DenialStatus returns the HTTP status used for a denial reason.
func DenialStatus(r access.Reason) int {
	if s, ok := denialStatus[r]; ok {
		return s
	}
	return http.StatusForbidden
}

// OpenLetter godoc
// @ID          openLetter
// @Summary     Open a letter by its public link
// @Description Returns the content when the letter is paid, released, within its limits and the password (if any) matches. Otherwise returns a denial with the reason and no content. Each grant counts one view.
// @Tags        Public
// @Produce     json
// @Param       link               path    string  true   "Unique link token"  example(Ab3dE5gH7jK9)
// @Param       password           query   string  false  "Access password"
// @Param       X-Letter-Password  header  string  false  "Access password (preferred over the query)"
// @Success     200  {object} handlers.PublicLetter
// @Failure     401  {object} handlers.DenialResponse "Password required or incorrect"
// @Failure     403  {object} handlers.DenialResponse "Not active"
// @Failure     404  {object} handlers.DenialResponse "Not found"
// @Failure     410  {object} handlers.DenialResponse "Expired or view limit reached"
// @Failure     425  {object} handlers.DenialResponse "Not released yet"
// @Failure     429  {object} handlers.ErrorResponse  "Too many attempts"
// @Router      /public/letters/{link} [get]
func (h *Handlers) OpenLetter(c *gin.Context) {
	pw := c.GetHeader(HeaderLetterPassword)
	if pw == "" {
		pw = c.Query("password")
	}
	h.open(c, pw)
}

// UnlockLetter godoc
// @ID          unlockLetter
// @Summary     Unlock a password-protected letter
// @Description Same as the GET variant, with the password in the JSON body.
// @Tags        Public
// @Accept      json
// @Produce     json
// @Param       link  path  string  true  "Unique link token"
// @Param       body  body  handlers.UnlockRequest  true  "Password"
// @Success     200  {object} handlers.PublicLetter
// @Failure     400  {object} handlers.ErrorResponse  "Bad request"
// @Failure     401  {object} handlers.DenialResponse "Password required or incorrect"
// @Failure     410  {object} handlers.DenialResponse "Expired or view limit reached"
// @Failure     425  {object} handlers.DenialResponse "Not released yet"
// @Router      /public/letters/{link}/unlock [post]
func (h *Handlers) UnlockLetter(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.open(c, req.Password)
}

func (h *Handlers) open(c *gin.Context, pw string) {
	link := strings.TrimSpace(c.Param("link"))
	if !services.ValidLinkShape(link) {
		// Malformed tokens never reach the store.
		deny(c, access.Deny(access.ReasonNotFound), nil)
		return
	}

	cookie, _ := c.Cookie(session.CookieName)
	res, err := h.access.Open(c.Request.Context(), services.OpenRequest{
		Token:        link,
		Password:     pw,
		SessionToken: cookie,
		SourceIP:     c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		failService(c, err)
		return
	}
	if !res.Decision.Granted {
		deny(c, res.Decision, res.Teaser)
		return
	}

	if res.SessionToken != "" {
		h.setSessionCookie(c, res.SessionToken, res.SessionExpires)
	}
	l := res.Letter
	ok(c, http.StatusOK, PublicLetter{
		Title:       l.Title,
		Content:     l.Content,
		ReleaseDate: l.ReleaseDate,
		ViewCount:   l.ViewCount,
		MaxViews:    l.MaxViews,
		ExpiresAt:   l.ExpiresAt,
	})
}

func deny(c *gin.Context, d access.Decision, teaser *services.Teaser) {
	resp := DenialResponse{
		RequestID:        middleware.RequestIDFrom(c),
		Code:             ErrCodeAccessDenied,
		Reason:           d.Reason,
		RequiresPassword: d.RequiresPassword,
		Message:          denialMessage[d.Reason],
	}
	if teaser != nil {
		resp.Title = teaser.Title
		rd := teaser.ReleaseDate
		resp.ReleaseDate = &rd
	}
	c.AbortWithStatusJSON(DenialStatus(d.Reason), resp)
}

func (h *Handlers) setSessionCookie(c *gin.Context, token string, expires time.Time) {
	maxAge := int(h.opts.SessionTTL / time.Second)
	if !expires.IsZero() {
		if d := time.Until(expires); d > 0 && d < h.opts.SessionTTL {
			maxAge = int(d / time.Second)
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, token, maxAge, "/", "", h.opts.SessionCookieSecure, true)
}
