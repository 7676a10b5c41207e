package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"coursehub/internal/mail"
)

// AsyncMailer hands messages to the mail collaborator off the request path.
// A failed dispatch is logged and never fails the caller: the token it
// carries has already been issued.
type AsyncMailer struct {
	dispatcher mail.Dispatcher
	timeout    time.Duration
	log        zerolog.Logger
	wg         sync.WaitGroup
}

func NewAsyncMailer(dispatcher mail.Dispatcher, timeout time.Duration, log zerolog.Logger) *AsyncMailer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncMailer{dispatcher: dispatcher, timeout: timeout, log: log}
}

func (m *AsyncMailer) Send(recipient string, template string, data map[string]string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		if err := m.dispatcher.Dispatch(ctx, recipient, template, data); err != nil {
			m.log.Error().
				Err(err).
				Str("recipient", recipient).
				Str("template", template).
				Msg("mail dispatch failed")
		}
	}()
}

// Wait blocks until every in-flight dispatch has finished.
func (m *AsyncMailer) Wait() {
	m.wg.Wait()
}
