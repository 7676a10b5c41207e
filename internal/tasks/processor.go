package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"coursehub/internal/mail"
)

// MailProcessor renders queued mail messages and hands them to the SMTP
// sender. Messages that can never be delivered are dropped; a send failure
// is returned so the message stays pending for a retry.
type MailProcessor struct {
	sender mail.Sender
	logger zerolog.Logger
}

func NewMailProcessor(sender mail.Sender, logger zerolog.Logger) *MailProcessor {
	return &MailProcessor{
		sender: sender,
		logger: logger,
	}
}

func (p *MailProcessor) Handle(ctx context.Context, msg redis.XMessage) error {
	message, err := mail.DecodeMessage(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable mail message")
		return nil
	}

	rendered, err := mail.Render(message.Template, message.Data)
	if err != nil {
		if errors.Is(err, mail.ErrUnknownTemplate) {
			p.logger.Warn().Str("message_id", msg.ID).Str("template", message.Template).Msg("unknown mail template")
			return nil
		}
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping unrenderable mail message")
		return nil
	}

	if err := p.sender.Send(ctx, message.Recipient, rendered); err != nil {
		return fmt.Errorf("send %s mail: %w", message.Template, err)
	}

	p.logger.Info().
		Str("message_id", msg.ID).
		Str("template", message.Template).
		Str("recipient", message.Recipient).
		Msg("mail sent")
	return nil
}
