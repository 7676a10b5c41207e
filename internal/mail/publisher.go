package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamPublisher appends messages to a Redis stream consumed by the worker.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Dispatch(ctx context.Context, recipient string, template string, data map[string]string) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode mail data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"recipient": recipient,
			"template":  template,
			"data":      string(encoded),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// DecodeMessage turns a stream entry written by Dispatch back into a Message.
func DecodeMessage(values map[string]any) (Message, error) {
	recipient, _ := values["recipient"].(string)
	template, _ := values["template"].(string)
	if recipient == "" || template == "" {
		return Message{}, fmt.Errorf("mail message missing recipient or template")
	}

	msg := Message{Recipient: recipient, Template: template, Data: map[string]string{}}
	if raw, ok := values["data"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &msg.Data); err != nil {
			return Message{}, fmt.Errorf("decode mail data: %w", err)
		}
	}
	return msg, nil
}

// LogDispatcher stands in when no queue is configured. It records that a
// message was dropped without logging its data, which holds one-time codes.
type LogDispatcher struct {
	log zerolog.Logger
}

func NewLogDispatcher(log zerolog.Logger) LogDispatcher {
	return LogDispatcher{log: log}
}

func (d LogDispatcher) Dispatch(_ context.Context, recipient string, template string, _ map[string]string) error {
	d.log.Warn().
		Str("recipient", recipient).
		Str("template", template).
		Msg("mail queue disabled, message dropped")
	return nil
}
