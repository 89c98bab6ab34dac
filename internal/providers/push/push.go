package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/smartorder/smartorder/internal/config"
	"go.uber.org/zap"
)

// Message is one push notification addressed to a device token.
type Message struct {
	Token string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPProvider posts to an FCM-style push endpoint with a server key.
type HTTPProvider struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

func NewHTTP(cfg config.Config) *HTTPProvider {
	return &HTTPProvider{
		endpoint:  cfg.PushEndpoint,
		serverKey: cfg.PushServerKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Send(ctx context.Context, msg Message) error {
	encoded, err := json.Marshal(map[string]any{
		"to": msg.Token,
		"notification": map[string]string{
			"title": msg.Title,
			"body":  msg.Body,
		},
		"data": msg.Data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// NoOpProvider records sends without delivering, for development and tests.
type NoOpProvider struct {
	log *zap.Logger

	mu   sync.Mutex
	sent []Message
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log.Named("push.noop")}
}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	p.mu.Lock()
	p.sent = append(p.sent, msg)
	p.mu.Unlock()
	p.log.Info("push suppressed", zap.String("title", msg.Title))
	return nil
}

func (p *NoOpProvider) Sent() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.sent...)
}
