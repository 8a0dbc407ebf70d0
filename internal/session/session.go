// Package session keeps the per-visitor list of letters that were already
// unlocked, so a visitor who entered a password is not asked again.
//
// The list lives client-side in a cookie holding an HS256 JWT. The signature
// makes the list tamper-evident. Every grant re-issues the token with a fresh
// absolute expiry (default 24h).
package session

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie carrying the signed allow-list.
const CookieName = "authorized_letters"

const (
	// DefaultTTL is the lifetime of an issued allow-list.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxLetters caps the number of ids kept in one token; the oldest
	// ids are dropped first.
	DefaultMaxLetters = 50

	issuer = "cartas-cosmicas/session"
)

// ErrWeakSecret is returned by NewCodec for secrets shorter than 32 bytes.
var ErrWeakSecret = errors.New("session secret must be at least 32 bytes")

type claims struct {
	Letters []string `json:"letters"`
	jwt.RegisteredClaims
}

// Codec signs and verifies allow-list tokens.
type Codec struct {
	secret     []byte
	ttl        time.Duration
	maxLetters int

	// Now is the clock used for issuing and validating; defaults to time.Now.
	Now func() time.Time
}

// NewCodec builds a Codec. ttl <= 0 selects DefaultTTL.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{
		secret:     append([]byte(nil), secret...),
		ttl:        ttl,
		maxLetters: DefaultMaxLetters,
		Now:        time.Now,
	}, nil
}

// TTL returns the lifetime given to issued tokens.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Allowlist is a decoded, verified set of letter ids.
type Allowlist struct {
	ids []string
}

// Contains reports whether id was unlocked in this session.
func (a Allowlist) Contains(id string) bool { return slices.Contains(a.ids, id) }

// IDs returns a copy of the ids in grant order.
func (a Allowlist) IDs() []string { return slices.Clone(a.ids) }

// Decode verifies token and returns its allow-list. A missing, forged,
// expired or malformed token yields an empty list and the error describing
// why; callers normally ignore the error and treat the visitor as new.
func (c *Codec) Decode(token string) (Allowlist, error) {
	if token == "" {
		return Allowlist{}, nil
	}
	var cl claims
	_, err := jwt.ParseWithClaims(token, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.Now),
	)
	if err != nil {
		return Allowlist{}, err
	}
	return Allowlist{ids: cl.Letters}, nil
}

// Grant adds letterID to the allow-list carried by token (which may be empty
// or invalid) and returns the re-signed token with its expiry.
func (c *Codec) Grant(token, letterID string) (string, time.Time, error) {
	list, _ := c.Decode(token)
	ids := slices.DeleteFunc(list.IDs(), func(s string) bool { return s == letterID })
	ids = append(ids, letterID)
	if over := len(ids) - c.maxLetters; over > 0 {
		ids = ids[over:]
	}

	now := c.Now()
	exp := now.Add(c.ttl)
	cl := claims{
		Letters: ids,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
