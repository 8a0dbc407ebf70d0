// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access log of the service. Letter
// content, passwords, session cookies and webhook signatures must never reach
// the logs, so the logger:
//
//   - logs the route template (c.FullPath()), not the raw path, which keeps
//     unique link tokens out of the log when a route matched;
//   - never reads request or response bodies;
//   - masks sensitive headers and query parameters entirely;
//   - scrubs e-mail addresses and phone numbers from the remaining values.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

// RedactOptions extends the built-in mask lists. Matching is case-insensitive.
type RedactOptions struct {
	MaskHeaders []string
	MaskQuery   []string
}

var (
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{4,5}[ .-]?\d{4}\b`)
)

type redactor struct {
	headers map[string]struct{}
	query   map[string]struct{}
}

func newRedactor(opts RedactOptions) *redactor {
	r := &redactor{
		headers: toSet([]string{"authorization", "cookie", "set-cookie", "x-signature", "x-letter-password"}, opts.MaskHeaders),
		query:   toSet([]string{"password", "signature", "token"}, opts.MaskQuery),
	}
	return r
}

func toSet(base, extra []string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for _, s := range append(base, extra...) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func (r *redactor) scrub(s string) string {
	if s == "" {
		return s
	}
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// rawQuery masks sensitive parameters. Unparseable queries are dropped.
func (r *redactor) rawQuery(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}
	for k, vv := range vals {
		if _, ok := r.query[strings.ToLower(k)]; ok {
			vals[k] = []string{redacted}
			continue
		}
		for i := range vv {
			vv[i] = r.scrub(vv[i])
		}
	}
	return truncate(vals.Encode(), maxQueryLogLength)
}

func (r *redactor) headerMap(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.headers[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = r.scrub(strings.Join(vv, ", "))
	}
	return out
}

// RedactingLogger attaches a request-scoped logger (request id, method,
// route, client ip) and emits one access log line per request. The level is
// info, warn for 4xx, error for 5xx or when handlers recorded errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	rd := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		attachLogger(c, l)

		query := rd.rawQuery(c.Request.URL.RawQuery)
		headers := rd.headerMap(c.Request.Header)

		c.Next()

		status := c.Writer.Status()
		lg := LoggerFrom(c)
		ev := lg.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = lg.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = lg.Warn()
		}

		ev.Str("query", query).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Int64("bytes_in", c.Request.ContentLength).
			Dur("latency", time.Since(start)).
			Str("user_agent", rd.scrub(c.Request.UserAgent())).
			Interface("headers", headers).
			Msg("http_request")
	}
}
