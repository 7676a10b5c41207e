package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/mail"
)

type sentMail struct {
	recipient string
	rendered  mail.Rendered
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (s *fakeSender) Send(_ context.Context, recipient string, rendered mail.Rendered) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{recipient: recipient, rendered: rendered})
	return nil
}

func activationMessage() redis.XMessage {
	return redis.XMessage{
		ID: "1-0",
		Values: map[string]any{
			"recipient": "alice@example.com",
			"template":  mail.TemplateActivation,
			"data":      `{"name":"Alice","code":"482913","expiresIn":"5m0s"}`,
		},
	}
}

func TestMailProcessorSends(t *testing.T) {
	sender := &fakeSender{}
	p := NewMailProcessor(sender, zerolog.Nop())

	require.NoError(t, p.Handle(context.Background(), activationMessage()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice@example.com", sender.sent[0].recipient)
	assert.Equal(t, "Activate your account", sender.sent[0].rendered.Subject)
	assert.Contains(t, sender.sent[0].rendered.Body, "482913")
}

func TestMailProcessorDropsPoisonMessages(t *testing.T) {
	sender := &fakeSender{}
	p := NewMailProcessor(sender, zerolog.Nop())

	messages := []redis.XMessage{
		{ID: "1-0", Values: map[string]any{"template": "activation"}},
		{ID: "2-0", Values: map[string]any{"recipient": "a@example.com", "template": "newsletter"}},
		{ID: "3-0", Values: map[string]any{"recipient": "a@example.com", "template": mail.TemplateActivation, "data": `{"name":"A"}`}},
		{ID: "4-0", Values: map[string]any{"recipient": "a@example.com", "template": mail.TemplateActivation, "data": `not json`}},
	}
	for _, msg := range messages {
		assert.NoError(t, p.Handle(context.Background(), msg), msg.ID)
	}
	assert.Empty(t, sender.sent)
}

func TestMailProcessorReturnsSendErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("421 try later")}
	p := NewMailProcessor(sender, zerolog.Nop())

	err := p.Handle(context.Background(), activationMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "421")
}
