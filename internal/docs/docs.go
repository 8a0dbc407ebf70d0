// Package docs registers the OpenAPI document served by Swagger UI.
// Regenerate with: swag init -g cmd/server/main.go -o internal/docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/letters": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "List letters (paginated)",
                "operationId": "listLetters",
                "parameters": [
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"enum": ["all", "pending", "paid", "failed"], "type": "string", "name": "status", "in": "query"},
                    {"type": "boolean", "name": "favorite", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"enum": ["created_at", "release_date", "title"], "type": "string", "name": "sort_by", "in": "query"},
                    {"enum": ["asc", "desc"], "type": "string", "name": "sort_order", "in": "query"},
                    {"minimum": 1, "type": "integer", "default": 1, "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListLettersResponse"}, "headers": {"ETag": {"type": "string"}}},
                    "304": {"description": "Not Modified"},
                    "422": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Create a letter",
                "operationId": "createLetter",
                "parameters": [
                    {"type": "string", "description": "Client retry key", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Letter payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateLetterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.LetterView"}, "headers": {"Idempotent-Replayed": {"type": "string"}}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/letters/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Dashboard counters",
                "operationId": "letterStats",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/repo.LetterStats"}}}
            }
        },
        "/letters/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Get a letter summary",
                "operationId": "getLetter",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LetterView"}},
                    "404": {"description": "Letter not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Update a letter",
                "operationId": "updateLetter",
                "parameters": [
                    {"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateLetterRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LetterView"}},
                    "404": {"description": "Letter not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Letters"],
                "summary": "Delete a letter",
                "operationId": "deleteLetter",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Letter not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}
            }
        },
        "/letters/{id}/preview": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Preview a letter",
                "operationId": "previewLetter",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LetterView"}}}
            }
        },
        "/letters/{id}/favorite": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Toggle the favorite flag",
                "operationId": "toggleFavorite",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.FavoriteResponse"}}}
            }
        },
        "/letters/{id}/archive": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Archive an active letter",
                "operationId": "archiveLetter",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LetterView"}}, "409": {"description": "Not allowed in current state", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}
            }
        },
        "/letters/{id}/unarchive": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Restore an archived letter",
                "operationId": "unarchiveLetter",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.LetterView"}}, "409": {"description": "Not allowed in current state", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}
            }
        },
        "/letters/{id}/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Start payment",
                "operationId": "checkoutLetter",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.CheckoutResponse"}}, "409": {"description": "Already paid or failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}
            }
        },
        "/letters/{id}/access-log": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Letters"],
                "summary": "Public access audit trail",
                "operationId": "letterAccessLog",
                "parameters": [
                    {"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true},
                    {"maximum": 200, "minimum": 1, "type": "integer", "default": 50, "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AccessLogResponse"}}}
            }
        },
        "/public/letters/{link}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Public"],
                "summary": "Open a letter by its public link",
                "operationId": "openLetter",
                "parameters": [
                    {"type": "string", "name": "link", "in": "path", "required": true},
                    {"type": "string", "name": "password", "in": "query"},
                    {"type": "string", "name": "X-Letter-Password", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PublicLetter"}},
                    "401": {"description": "Password required or incorrect", "schema": {"$ref": "#/definitions/handlers.DenialResponse"}},
                    "403": {"description": "Not active", "schema": {"$ref": "#/definitions/handlers.DenialResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.DenialResponse"}},
                    "410": {"description": "Expired or view limit reached", "schema": {"$ref": "#/definitions/handlers.DenialResponse"}},
                    "425": {"description": "Not released yet", "schema": {"$ref": "#/definitions/handlers.DenialResponse"}},
                    "429": {"description": "Too many attempts", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/public/letters/{link}/unlock": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Public"],
                "summary": "Unlock a password-protected letter",
                "operationId": "unlockLetter",
                "parameters": [
                    {"type": "string", "name": "link", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UnlockRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PublicLetter"}},
                    "401": {"description": "Password required or incorrect", "schema": {"$ref": "#/definitions/handlers.DenialResponse"}}
                }
            }
        },
        "/webhooks/payment": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhooks"],
                "summary": "Generic payment callback",
                "operationId": "paymentWebhook",
                "parameters": [{"type": "string", "name": "X-Signature", "in": "header", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WebhookAck"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Invalid signature", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/webhooks/kiwify": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Webhooks"],
                "summary": "Kiwify order callback",
                "operationId": "kiwifyWebhook",
                "parameters": [{"type": "string", "name": "signature", "in": "query", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WebhookAck"}},
                    "401": {"description": "Invalid signature", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"},
                "fields": {"type": "array", "items": {"$ref": "#/definitions/services.FieldError"}}
            }
        },
        "services.FieldError": {
            "type": "object",
            "properties": {"field": {"type": "string"}, "code": {"type": "string"}, "message": {"type": "string"}}
        },
        "handlers.CreateLetterRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string", "example": "Para você"},
                "content": {"type": "string"},
                "release_date": {"type": "string", "format": "date-time"},
                "access_password": {"type": "string"},
                "max_views": {"type": "integer"},
                "expires_at": {"type": "string", "format": "date-time"},
                "save_as_draft": {"type": "boolean"}
            }
        },
        "handlers.UpdateLetterRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "release_date": {"type": "string", "format": "date-time"},
                "access_password": {"type": "string"},
                "max_views": {"type": "integer"},
                "expires_at": {"type": "string", "format": "date-time"},
                "is_favorite": {"type": "boolean"}
            }
        },
        "handlers.UnlockRequest": {"type": "object", "properties": {"password": {"type": "string"}}},
        "handlers.LetterView": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "content": {"type": "string"},
                "unique_link": {"type": "string"},
                "share_url": {"type": "string"},
                "state": {"type": "string", "example": "pending_payment"},
                "lifecycle_status": {"type": "string", "example": "DRAFT"},
                "payment_status": {"type": "string", "example": "PENDING"},
                "release_date": {"type": "string", "format": "date-time"},
                "expires_at": {"type": "string", "format": "date-time"},
                "max_views": {"type": "integer"},
                "view_count": {"type": "integer"},
                "has_password": {"type": "boolean"},
                "is_favorite": {"type": "boolean"},
                "paid_at": {"type": "string", "format": "date-time"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {"page": {"type": "integer"}, "page_size": {"type": "integer"}, "total": {"type": "integer"}, "total_pages": {"type": "integer"}, "has_next": {"type": "boolean"}}
        },
        "handlers.ListLettersResponse": {
            "type": "object",
            "properties": {
                "letters": {"type": "array", "items": {"$ref": "#/definitions/handlers.LetterView"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "repo.LetterStats": {
            "type": "object",
            "properties": {"total": {"type": "integer"}, "pending": {"type": "integer"}, "paid": {"type": "integer"}, "failed": {"type": "integer"}, "favorites": {"type": "integer"}}
        },
        "handlers.FavoriteResponse": {"type": "object", "properties": {"is_favorite": {"type": "boolean"}}},
        "handlers.CheckoutResponse": {
            "type": "object",
            "properties": {
                "letter_id": {"type": "string"},
                "correlation_id": {"type": "string"},
                "amount_cents": {"type": "integer", "example": 299},
                "currency": {"type": "string", "example": "BRL"},
                "unique_link": {"type": "string"},
                "state": {"type": "string"},
                "release_date": {"type": "string", "format": "date-time"},
                "share_url": {"type": "string"}
            }
        },
        "handlers.AccessLogResponse": {
            "type": "object",
            "properties": {"attempts": {"type": "array", "items": {"$ref": "#/definitions/domain.AccessAttempt"}}}
        },
        "domain.AccessAttempt": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "letter_id": {"type": "string"},
                "link_token": {"type": "string"},
                "source_ip": {"type": "string"},
                "user_agent": {"type": "string"},
                "success": {"type": "boolean"},
                "reason": {"type": "string"},
                "requested_at": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.PublicLetter": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "release_date": {"type": "string", "format": "date-time"},
                "view_count": {"type": "integer"},
                "max_views": {"type": "integer"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.DenialResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "access_denied"},
                "reason": {"type": "string", "example": "NOT_YET_RELEASED"},
                "requires_password": {"type": "boolean"},
                "message": {"type": "string"},
                "title": {"type": "string"},
                "release_date": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.WebhookAck": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "ok"}, "result": {"type": "string", "example": "applied"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Cartas Cósmicas API",
	Description:      "Time-locked letters: owners write and pay for a letter; recipients open it by link once it is released.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
