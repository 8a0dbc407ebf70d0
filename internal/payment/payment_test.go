package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SHA256(t *testing.T) {
	s := NewSHA256Signer("topsecret")
	body := []byte(`{"letterId":"l1","status":"paid"}`)
	sig := s.Sign(body)

	assert.NoError(t, s.Verify(body, sig))
	assert.NoError(t, s.Verify(body, "sha256="+sig))
	assert.NoError(t, s.Verify(body, strings.ToUpper(sig)))

	assert.ErrorIs(t, s.Verify([]byte(`{"letterId":"l2","status":"paid"}`), sig), ErrSignatureInvalid)
	assert.ErrorIs(t, s.Verify(body, ""), ErrSignatureInvalid)
	assert.ErrorIs(t, s.Verify(body, "zz-not-hex"), ErrSignatureInvalid)
	assert.ErrorIs(t, NewSHA256Signer("other").Verify(body, sig), ErrSignatureInvalid)
}

func TestSigner_SHA1AndEmptySecret(t *testing.T) {
	s := NewSHA1Signer("k")
	body := []byte(`{"order_id":"l1","order_status":"paid"}`)
	sig := s.Sign(body)
	assert.Len(t, sig, 40)
	assert.NoError(t, s.Verify(body, sig))

	empty := NewSHA1Signer("")
	assert.ErrorIs(t, empty.Verify(body, empty.Sign(body)), ErrSignatureInvalid)
}

func TestGenericDecoder(t *testing.T) {
	d, err := NewGenericDecoder()
	require.NoError(t, err)
	assert.Equal(t, ProviderGeneric, d.Provider())

	n, err := d.Decode([]byte(`{"letterId":"l1","paymentId":"p1","status":"completed","amount":2.99,"currency":"BRL"}`))
	require.NoError(t, err)
	assert.Equal(t, Notification{
		Provider: ProviderGeneric, LetterID: "l1", PaymentID: "p1",
		Status: "completed", Outcome: OutcomeSuccess, Amount: 2.99, Currency: "BRL",
	}, n)

	for _, bad := range []string{
		`not json`,
		`{"status":"paid"}`,
		`{"letterId":"","status":"paid"}`,
		`{"letterId":"l1","status":"paid","amount":-1}`,
		`[]`,
	} {
		_, err := d.Decode([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidPayload, bad)
	}
}

func TestKiwifyDecoder(t *testing.T) {
	var d KiwifyDecoder
	n, err := d.Decode([]byte(`{"order_id":"l1","order_status":"refunded","order_ref":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "l1", n.LetterID)
	assert.Equal(t, "abc", n.PaymentID)
	assert.Equal(t, OutcomeFailure, n.Outcome)

	n, err = d.Decode([]byte(`{"order_id":"l2","order_status":"paid"}`))
	require.NoError(t, err)
	assert.Equal(t, "l2", n.PaymentID)

	_, err = d.Decode([]byte(`{"order_status":"paid"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = d.Decode([]byte(`{`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestClassify(t *testing.T) {
	cases := map[string]Outcome{
		"paid": OutcomeSuccess, "Completed": OutcomeSuccess,
		"failed": OutcomeFailure, "cancelled": OutcomeFailure,
		"waiting": OutcomeIntermediate, "": OutcomeIntermediate,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClassifyGeneric(in), in)
	}

	kiwi := map[string]Outcome{
		"paid": OutcomeSuccess, "refused": OutcomeFailure, "refunded": OutcomeFailure,
		"chargedback": OutcomeFailure, "waiting_payment": OutcomeIntermediate,
	}
	for in, want := range kiwi {
		assert.Equal(t, want, ClassifyKiwify(in), in)
	}
}
