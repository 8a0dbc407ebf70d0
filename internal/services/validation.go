package services

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/cartas-cosmicas/internal/password"
)

// Bounds for letter fields.
const (
	TitleMaxRunes      = 100
	ContentMinRunes    = 10
	ContentMaxRunes    = 5000
	PasswordMinRunes   = 4
	PasswordMaxRunes   = 32
	PasswordMaxBytes   = 72 // bcrypt input limit
	MaxViewsMin        = 1
	MaxViewsMax        = 1000
	DefaultReleaseSpan = 15 * 24 * time.Hour

	// UniqueLinkLength is the number of characters of a public link token.
	UniqueLinkLength = 12
)

// Field error codes.
const (
	CodeRequired      = "required"
	CodeTooShort      = "too_short"
	CodeTooLong       = "too_long"
	CodeInPast        = "in_past"
	CodeTooFar        = "too_far"
	CodeOutOfRange    = "out_of_range"
	CodeBeforeRelease = "before_release"
	CodeInvalid       = "invalid"
)

// linkAlphabet has exactly 64 symbols so a random byte masked with 63 picks
// one uniformly.
const linkAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

var uniqueLinkRE = regexp.MustCompile(`^[A-Za-z0-9_-]{12}$`)

// NewUniqueLink returns a fresh random link token from crypto/rand.
func NewUniqueLink() (string, error) {
	b := make([]byte, UniqueLinkLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = linkAlphabet[b[i]&63]
	}
	return string(b), nil
}

// ValidLinkShape reports whether token could be a unique link. Handlers use
// it to skip a database round trip for obviously bogus tokens.
func ValidLinkShape(token string) bool { return uniqueLinkRE.MatchString(token) }

var spaceRunRE = regexp.MustCompile(`[ \t]+`)

// normalizeTitle applies NFC, trims, and collapses runs of blanks.
func normalizeTitle(s string) string {
	s = norm.NFC.String(s)
	return spaceRunRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// normalizeContent applies NFC, unifies line endings and trims.
func normalizeContent(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// letterRules checks the write-time bounds shared by create and update.
type letterRules struct {
	now     time.Time
	horizon time.Duration
	verr    ValidationError
}

func (r *letterRules) title(t string) {
	if utf8.RuneCountInString(t) > TitleMaxRunes {
		r.verr.Add("title", CodeTooLong, fmt.Sprintf("must be at most %d characters", TitleMaxRunes))
	}
}

func (r *letterRules) content(c string) {
	n := utf8.RuneCountInString(c)
	switch {
	case n == 0:
		r.verr.Add("content", CodeRequired, "is required")
	case n < ContentMinRunes:
		r.verr.Add("content", CodeTooShort, fmt.Sprintf("must be at least %d characters", ContentMinRunes))
	case n > ContentMaxRunes:
		r.verr.Add("content", CodeTooLong, fmt.Sprintf("must be at most %d characters", ContentMaxRunes))
	}
}

func (r *letterRules) releaseDate(d time.Time) {
	switch {
	case d.IsZero():
		r.verr.Add("release_date", CodeRequired, "is required")
	case !d.After(r.now):
		r.verr.Add("release_date", CodeInPast, "must be in the future")
	case d.After(r.now.Add(r.horizon)):
		r.verr.Add("release_date", CodeTooFar, fmt.Sprintf("must be at most %s ahead", humanSpan(r.horizon)))
	}
}

func (r *letterRules) password(p string) {
	if !password.Provided(p) {
		return
	}
	n := utf8.RuneCountInString(p)
	switch {
	case n < PasswordMinRunes || n > PasswordMaxRunes:
		r.verr.Add("access_password", CodeOutOfRange, fmt.Sprintf("must be %d to %d characters", PasswordMinRunes, PasswordMaxRunes))
	case len(p) > PasswordMaxBytes:
		r.verr.Add("access_password", CodeTooLong, fmt.Sprintf("must be at most %d bytes", PasswordMaxBytes))
	}
}

func (r *letterRules) maxViews(v *int) {
	if v != nil && (*v < MaxViewsMin || *v > MaxViewsMax) {
		r.verr.Add("max_views", CodeOutOfRange, fmt.Sprintf("must be between %d and %d", MaxViewsMin, MaxViewsMax))
	}
}

func (r *letterRules) expiresAt(exp *time.Time, release time.Time) {
	if exp == nil || r.verr.Has("release_date") {
		return
	}
	if !exp.After(release) {
		r.verr.Add("expires_at", CodeBeforeRelease, "must be after the release date")
	}
}

func humanSpan(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}
