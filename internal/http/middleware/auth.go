// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates letter owners. Owner routes expect
// "Authorization: Bearer <jwt>" signed with HS256; the subject claim is the
// owner id and is stored under the "userID" Gin key, which the rate limiter
// and idempotency validator already read.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "userID"

// ErrMissingToken is returned when no bearer token is present.
var ErrMissingToken = errors.New("missing bearer token")

// OwnerAuth verifies owner bearer tokens.
type OwnerAuth struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewOwnerAuth returns an authenticator for tokens signed with secret. An
// empty issuer disables the iss check.
func NewOwnerAuth(secret []byte, issuer string) *OwnerAuth {
	return &OwnerAuth{secret: secret, issuer: issuer, leeway: 30 * time.Second}
}

// Sign issues a token for ownerID valid for ttl. It backs the dev token
// command and the tests.
func (a *OwnerAuth) Sign(ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates raw and returns the owner id.
func (a *OwnerAuth) Parse(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Handler rejects requests without a valid owner token with 401.
func (a *OwnerAuth) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, err := a.Parse(bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("owner authentication failed")
			c.Header("WWW-Authenticate", `Bearer realm="cartas"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthorized",
				"message":    "valid bearer token required",
			})
			return
		}
		c.Set(userIDKey, owner)
		attachLogger(c, LoggerFrom(c).With().Str("owner_id", owner).Logger())
		c.Next()
	}
}

// OwnerID returns the authenticated owner id, or "".
func OwnerID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	return asString(v)
}

func bearerToken(h string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
