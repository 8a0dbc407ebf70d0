// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings carried in ErrorResponse.Code.
// Clients branch on them instead of on messages. Access denials on the public
// read path use DenialResponse and the access reason instead.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "message": "request has invalid fields",
//	  "fields": [{"field": "release_date", "code": "in_past", "message": "must be in the future"}]
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidation        = "validation_failed"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeAccessDenied      = "access_denied"
	ErrCodeBadSignature      = "invalid_signature"
	ErrCodeBadPayload        = "invalid_payload"
)
