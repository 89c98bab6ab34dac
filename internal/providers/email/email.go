package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/smartorder/smartorder/internal/config"
	"go.uber.org/zap"
)

// Provider sends transactional mail. Implementations must respect the
// context deadline.
type Provider interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPProvider sends through a plain SMTP relay.
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTP(cfg config.Config) *SMTPProvider {
	return &SMTPProvider{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

func (p *SMTPProvider) Send(ctx context.Context, to, subject, body string) error {
	message := strings.Join([]string{
		"From: " + p.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, p.from, []string{to}, []byte(message))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoOpProvider logs instead of sending, for environments without SMTP.
type NoOpProvider struct {
	log *zap.Logger

	mu   sync.Mutex
	sent []string
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log.Named("email.noop")}
}

func (p *NoOpProvider) Send(ctx context.Context, to, subject, body string) error {
	p.mu.Lock()
	p.sent = append(p.sent, to+"|"+subject)
	p.mu.Unlock()
	p.log.Info("email suppressed", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// Sent reports suppressed deliveries, used by tests.
func (p *NoOpProvider) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}
