package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidPayload is returned for a verified body that cannot be decoded.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// Outcome classifies a provider status.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeFailure      Outcome = "failure"
	OutcomeIntermediate Outcome = "intermediate"
)

// Provider names as they appear in logs, metrics and the delivery log.
const (
	ProviderGeneric = "generic"
	ProviderKiwify  = "kiwify"
)

// Notification is a decoded, provider-neutral payment callback.
type Notification struct {
	Provider  string
	LetterID  string
	PaymentID string
	Status    string
	Outcome   Outcome
	Amount    float64
	Currency  string
}

// Decoder parses a verified body.
type Decoder interface {
	Provider() string
	Decode(body []byte) (Notification, error)
}

const genericSchema = `{
  "type": "object",
  "required": ["letterId", "status"],
  "properties": {
    "letterId":  {"type": "string", "minLength": 1, "maxLength": 64},
    "paymentId": {"type": "string", "maxLength": 128},
    "status":    {"type": "string", "minLength": 1, "maxLength": 32},
    "amount":    {"type": "number", "minimum": 0},
    "currency":  {"type": "string", "maxLength": 8}
  }
}`

// GenericDecoder decodes `{letterId, paymentId, status, amount, currency}`
// after validating the body against a JSON schema.
type GenericDecoder struct {
	schema *gojsonschema.Schema
}

// NewGenericDecoder compiles the payload schema.
func NewGenericDecoder() (*GenericDecoder, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(genericSchema))
	if err != nil {
		return nil, fmt.Errorf("compile payment schema: %w", err)
	}
	return &GenericDecoder{schema: s}, nil
}

// Provider implements Decoder.
func (*GenericDecoder) Provider() string { return ProviderGeneric }

// Decode implements Decoder.
func (d *GenericDecoder) Decode(body []byte) (Notification, error) {
	res, err := d.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !res.Valid() {
		var errs []string
		for _, desc := range res.Errors() {
			errs = append(errs, desc.String())
		}
		return Notification{}, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(errs, "; "))
	}

	var p struct {
		LetterID  string  `json:"letterId"`
		PaymentID string  `json:"paymentId"`
		Status    string  `json:"status"`
		Amount    float64 `json:"amount"`
		Currency  string  `json:"currency"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Notification{
		Provider:  ProviderGeneric,
		LetterID:  strings.TrimSpace(p.LetterID),
		PaymentID: p.PaymentID,
		Status:    p.Status,
		Outcome:   ClassifyGeneric(p.Status),
		Amount:    p.Amount,
		Currency:  p.Currency,
	}, nil
}

// ClassifyGeneric maps the generic provider's status vocabulary.
func ClassifyGeneric(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "completed":
		return OutcomeSuccess
	case "failed", "cancelled", "canceled":
		return OutcomeFailure
	default:
		return OutcomeIntermediate
	}
}

// KiwifyDecoder decodes Kiwify order callbacks. The letter id travels as the
// order id.
type KiwifyDecoder struct{}

// Provider implements Decoder.
func (KiwifyDecoder) Provider() string { return ProviderKiwify }

// Decode implements Decoder.
func (KiwifyDecoder) Decode(body []byte) (Notification, error) {
	var p struct {
		OrderID     string `json:"order_id"`
		OrderStatus string `json:"order_status"`
		OrderRef    string `json:"order_ref"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.OrderID) == "" || strings.TrimSpace(p.OrderStatus) == "" {
		return Notification{}, fmt.Errorf("%w: order_id and order_status are required", ErrInvalidPayload)
	}
	paymentID := p.OrderRef
	if paymentID == "" {
		paymentID = p.OrderID
	}
	return Notification{
		Provider:  ProviderKiwify,
		LetterID:  strings.TrimSpace(p.OrderID),
		PaymentID: paymentID,
		Status:    p.OrderStatus,
		Outcome:   ClassifyKiwify(p.OrderStatus),
	}, nil
}

// ClassifyKiwify maps Kiwify order statuses.
func ClassifyKiwify(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid":
		return OutcomeSuccess
	case "refused", "refunded", "chargedback":
		return OutcomeFailure
	default:
		return OutcomeIntermediate
	}
}
