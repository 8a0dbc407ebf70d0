package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisher_EmptyURLIsNoop(t *testing.T) {
	p := NewPublisher("")
	_, ok := p.(Noop)
	require.True(t, ok, "expected Noop, got %T", p)
	assert.NoError(t, p.Publish(context.Background(), SubjectActivated, LetterEvent{LetterID: "l1"}))
	assert.NoError(t, p.Close())
}

func TestNewPublisher_UnreachableFallsBackToNoop(t *testing.T) {
	p := NewPublisher("nats://127.0.0.1:1")
	_, ok := p.(Noop)
	assert.True(t, ok, "expected Noop, got %T", p)
}

func TestEnvelope_OmitsSecrets(t *testing.T) {
	env := Envelope{
		Type:       SubjectActivated,
		Version:    "1.0.0",
		OccurredAt: time.Now().UTC(),
		Payload:    LetterEvent{LetterID: "l1", OwnerID: "u1", UniqueLink: "abc"},
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	payload := m["payload"].(map[string]any)
	assert.NotContains(t, payload, "content")
	assert.NotContains(t, payload, "password")
	assert.Equal(t, "l1", payload["letterId"])
}
