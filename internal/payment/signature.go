// Package payment turns raw payment-provider callbacks into trusted,
// provider-neutral notifications. Signatures are checked over the raw body
// before any byte of the payload is parsed.
package payment

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"strings"
)

// ErrSignatureInvalid is returned when a callback is unsigned, signed with a
// different secret, or altered in transit.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// Signer computes and checks hex-encoded HMAC signatures of raw bodies.
type Signer struct {
	secret []byte
	hash   func() hash.Hash
	prefix string
}

// NewSHA256Signer signs with HMAC-SHA256. Signatures may carry a "sha256="
// prefix, as most providers send them.
func NewSHA256Signer(secret string) *Signer {
	return &Signer{secret: []byte(secret), hash: sha256.New, prefix: "sha256="}
}

// NewSHA1Signer signs with HMAC-SHA1 (Kiwify).
func NewSHA1Signer(secret string) *Signer {
	return &Signer{secret: []byte(secret), hash: sha1.New, prefix: "sha1="}
}

// Sign returns the lowercase hex signature of body.
func (s *Signer) Sign(body []byte) string {
	m := hmac.New(s.hash, s.secret)
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// Verify checks sig against body in constant time. An empty secret never
// verifies, so an unconfigured endpoint rejects everything.
func (s *Signer) Verify(body []byte, sig string) error {
	if len(s.secret) == 0 {
		return ErrSignatureInvalid
	}
	sig = strings.TrimPrefix(strings.TrimSpace(sig), s.prefix)
	got, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil || len(got) == 0 {
		return ErrSignatureInvalid
	}
	m := hmac.New(s.hash, s.secret)
	m.Write(body)
	if !hmac.Equal(got, m.Sum(nil)) {
		return ErrSignatureInvalid
	}
	return nil
}
