// Package services defines the business logic for letters, public access and
// payments. This file centralizes service-level error values so callers can
// check them with errors.Is/As and handlers can map them to HTTP results.
package services

import (
	"errors"
	"strings"
)

var (
	// ErrLetterNotFound indicates that the letter does not exist or belongs
	// to another owner.
	ErrLetterNotFound = errors.New("letter not found")

	// ErrInvalidTransition is returned when an owner action does not apply to
	// the letter's current state (e.g. archiving a draft).
	ErrInvalidTransition = errors.New("action not allowed in the current letter state")

	// ErrLinkExhausted is returned when no unused unique link could be
	// generated after several attempts.
	ErrLinkExhausted = errors.New("could not allocate a unique link")

	// ErrUnknownCorrelation indicates a payment callback for a letter id that
	// does not exist. It is acknowledged, not retried.
	ErrUnknownCorrelation = errors.New("payment correlation id unknown")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError collects every field-level problem of a write request.
// Values are never clamped into range; the request is rejected instead.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem for field.
func (e *ValidationError) Add(field, code, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: msg})
}

// Has reports whether field already has a recorded problem.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Err returns e when it holds at least one problem, otherwise nil.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
