package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"coursehub/internal/config"
	"coursehub/internal/ids"
)

type Sender interface {
	Send(ctx context.Context, recipient string, rendered Rendered) error
}

type SMTPSender struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{cfg: cfg, auth: auth}
}

func (s *SMTPSender) Send(ctx context.Context, recipient string, rendered Rendered) error {
	address := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.timeout()}

	var (
		conn net.Conn
		err  error
	)
	// 465 is implicit TLS; everything else upgrades with STARTTLS.
	if s.cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}).DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.timeout()))
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if s.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(s.buildMessage(recipient, rendered)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

func (s *SMTPSender) timeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return 10 * time.Second
}

func (s *SMTPSender) buildMessage(recipient string, rendered Rendered) []byte {
	domain := "localhost"
	if at := strings.LastIndex(s.cfg.From, "@"); at >= 0 {
		domain = s.cfg.From[at+1:]
	}

	return fmt.Appendf(nil,
		"Message-ID: <%s@%s>\r\n"+
			"Date: %s\r\n"+
			"To: %s\r\n"+
			"From: %s <%s>\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/plain; charset=\"utf-8\"\r\n"+
			"\r\n"+
			"%s",
		ids.New(), domain,
		time.Now().Format(time.RFC1123Z),
		recipient,
		mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.From,
		mime.QEncoding.Encode("utf-8", rendered.Subject),
		strings.ReplaceAll(rendered.Body, "\n", "\r\n"),
	)
}
