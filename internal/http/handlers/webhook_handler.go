// Payment webhook HTTP handlers.
//
//   - POST /webhooks/payment   (HMAC-SHA256 hex in X-Signature)
//   - POST /webhooks/kiwify    (HMAC-SHA1 hex in ?signature=)
//
// The raw body is verified before it is decoded. Unknown correlation ids are
// acknowledged with 200 so providers stop retrying; transient failures return
// 500 so they retry.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/cartas-cosmicas/internal/http/middleware"
	"github.com/tbourn/cartas-cosmicas/internal/metrics"
	"github.com/tbourn/cartas-cosmicas/internal/payment"
	"github.com/tbourn/cartas-cosmicas/internal/services"
)

// maxWebhookBody bounds what a provider may send.
const maxWebhookBody = 64 << 10

// WebhookProvider binds a provider's signature scheme to its payload decoder.
type WebhookProvider struct {
	Decoder   payment.Decoder
	Signer    *payment.Signer
	Signature func(c *gin.Context) string
}

// SignatureFromHeader reads the signature from a request header.
func SignatureFromHeader(name string) func(*gin.Context) string {
	return func(c *gin.Context) string { return c.GetHeader(name) }
}

// SignatureFromQuery reads the signature from a query parameter.
func SignatureFromQuery(name string) func(*gin.Context) string {
	return func(c *gin.Context) string { return c.Query(name) }
}

// PaymentWebhook godoc
// @ID          paymentWebhook
// @Summary     Generic payment callback
// @Description Body {letterId, paymentId, status, amount, currency}, signed with HMAC-SHA256 over the raw body.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       X-Signature  header  string  true  "hex HMAC-SHA256 of the body, optionally prefixed sha256="
// @Success     200  {object} handlers.WebhookAck
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     401  {object} handlers.ErrorResponse "Invalid signature"
// @Failure     500  {object} handlers.ErrorResponse "Transient failure, retry"
// @Router      /webhooks/payment [post]
func (h *Handlers) PaymentWebhook(p WebhookProvider) gin.HandlerFunc { return h.webhook(p) }

// KiwifyWebhook godoc
// @ID          kiwifyWebhook
// @Summary     Kiwify order callback
// @Description Body carries order_id and order_status; signed with HMAC-SHA1 over the raw body.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       signature  query  string  true  "hex HMAC-SHA1 of the body"
// @Success     200  {object} handlers.WebhookAck
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     401  {object} handlers.ErrorResponse "Invalid signature"
// @Failure     500  {object} handlers.ErrorResponse "Transient failure, retry"
// @Router      /webhooks/kiwify [post]
func (h *Handlers) KiwifyWebhook(p WebhookProvider) gin.HandlerFunc { return h.webhook(p) }

func (h *Handlers) webhook(p WebhookProvider) gin.HandlerFunc {
	provider := p.Decoder.Provider()
	return func(c *gin.Context) {
		log := middleware.LoggerFrom(c)

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err != nil || len(body) > maxWebhookBody {
			fail(c, http.StatusBadRequest, ErrCodeBadPayload, "unreadable or oversized body")
			return
		}
		if err := p.Signer.Verify(body, p.Signature(c)); err != nil {
			metrics.WebhookDeliveries.WithLabelValues(provider, "invalid_signature").Inc()
			log.Warn().Str("provider", provider).Msg("webhook signature rejected")
			fail(c, http.StatusUnauthorized, ErrCodeBadSignature, "signature verification failed")
			return
		}

		n, err := p.Decoder.Decode(body)
		if err != nil {
			metrics.WebhookDeliveries.WithLabelValues(provider, "invalid_payload").Inc()
			log.Warn().Err(err).Str("provider", provider).Msg("webhook payload rejected")
			fail(c, http.StatusBadRequest, ErrCodeBadPayload, err.Error())
			return
		}

		res, err := h.payments.Process(c.Request.Context(), body, n)
		switch {
		case errors.Is(err, services.ErrUnknownCorrelation):
			log.Warn().Str("provider", provider).Str("letter_id", n.LetterID).Msg("webhook for unknown letter")
			ok(c, http.StatusOK, WebhookAck{Status: "ignored", Result: string(services.ResultUnknown)})
		case err != nil:
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not apply notification")
		default:
			ok(c, http.StatusOK, WebhookAck{Status: "ok", Result: string(res)})
		}
	}
}
