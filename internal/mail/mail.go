// Package mail carries transactional email from the API to the worker. The
// API side only enqueues; rendering and SMTP delivery happen in cmd/worker.
package mail

import (
	"context"
)

const (
	TemplateActivation    = "activation"
	TemplatePasswordReset = "password-reset"
)

// Dispatcher is the email collaborator: (recipientEmail, templateName, templateData).
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient string, template string, data map[string]string) error
}

type Message struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Data      map[string]string `json:"data"`
}
