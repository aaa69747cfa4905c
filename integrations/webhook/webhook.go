package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"

	"just3sec/core"
)

// Sink posts game events to configured HTTP endpoints.
// It is synchronous for determinism; subscribe it on an async bus to keep
// the game loop free of network latency.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     []core.EventType
	logger    *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTypes restricts delivery to the listed event types.
func WithTypes(types ...core.EventType) Option {
	return func(s *Sink) { s.types = append([]core.EventType{}, types...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Wants reports whether events of typ are delivered.
func (s *Sink) Wants(typ core.EventType) bool {
	return len(s.types) == 0 || lo.Contains(s.types, typ)
}

// OnEvent has the event bus handler signature. Failures are logged.
func (s *Sink) OnEvent(ctx context.Context, e core.Event) {
	if err := s.Deliver(ctx, e); err != nil {
		s.logger.Warn("webhook delivery failed", "event", e.Type, "user", e.UserID, "error", err)
	}
}

// Deliver posts the event JSON to all endpoints and joins the failures.
func (s *Sink) Deliver(ctx context.Context, e core.Event) error {
	if len(s.endpoints) == 0 || !s.Wants(e.Type) {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var errs []error
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ep, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
