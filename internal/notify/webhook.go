// Package notify forwards lifecycle events to the configured webhook. Delivery
// is best effort: one attempt per event, bounded by a timeout, off the request
// path, with failures logged and counted but never returned or retried.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/qa-dashboard/backend/internal/lifecycle"
	"github.com/qa-dashboard/backend/internal/metrics"
)

// DefaultTimeout bounds one webhook attempt.
const DefaultTimeout = 5 * time.Second

const maxResponseDrain = 64 << 10

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Config holds the dispatcher settings. An empty URL disables delivery.
type Config struct {
	URL             string
	Timeout         time.Duration
	BreakerFailures int           // consecutive failures that open the breaker; 0 disables it
	BreakerOpen     time.Duration // how long the breaker stays open
}

// DeliveryError describes a failed webhook attempt.
type DeliveryError struct {
	Event      string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook %s: unexpected status %d", e.Event, e.StatusCode)
	}
	return fmt.Sprintf("webhook %s: %v", e.Event, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Dispatcher posts lifecycle events to one webhook URL.
type Dispatcher struct {
	url     string
	timeout time.Duration
	client  Doer
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a webhook dispatcher. client defaults to a plain *http.Client;
// the per-attempt timeout is applied through the request context.
func NewDispatcher(cfg Config, client Doer, logger *zap.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	d := &Dispatcher{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		client:  client,
		logger:  logger,
	}
	if cfg.BreakerFailures > 0 {
		threshold := uint32(cfg.BreakerFailures)
		d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "webhook",
			MaxRequests: 1,
			Timeout:     cfg.BreakerOpen,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.WebhookBreakerState.Set(float64(to))
				logger.Warn("webhook circuit breaker state changed",
					zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}
	return d
}

// Enabled reports whether a webhook URL is configured.
func (d *Dispatcher) Enabled() bool {
	return d.url != ""
}

// Notify schedules one delivery attempt for ev and returns immediately.
// Without a configured URL it does nothing.
func (d *Dispatcher) Notify(ev lifecycle.Event) {
	if !d.Enabled() {
		return
	}
	name := ev.WebhookName()
	payload := ev.WebhookPayload()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("webhook delivery panicked", zap.String("event", name), zap.Any("panic", r))
			}
		}()
		_ = d.deliver(name, payload)
	}()
}

// Wait blocks until all scheduled attempts have finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver makes one attempt and records its outcome. The error is returned for tests only.
func (d *Dispatcher) deliver(name string, payload map[string]any) error {
	start := time.Now()
	var err error
	if d.breaker != nil {
		_, err = d.breaker.Execute(func() (interface{}, error) {
			return nil, d.post(name, payload)
		})
	} else {
		err = d.post(name, payload)
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.WebhookAttempts.WithLabelValues(name, "skipped").Inc()
		d.logger.Debug("webhook skipped, circuit open", zap.String("event", name))
	case err != nil:
		metrics.WebhookAttempts.WithLabelValues(name, "failure").Inc()
		metrics.WebhookDuration.Observe(time.Since(start).Seconds())
		d.logger.Warn("webhook delivery failed", zap.String("event", name), zap.Error(err))
	default:
		metrics.WebhookAttempts.WithLabelValues(name, "success").Inc()
		metrics.WebhookDuration.Observe(time.Since(start).Seconds())
		d.logger.Debug("webhook delivered", zap.String("event", name))
	}
	return err
}

func (d *Dispatcher) post(name string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Event: name, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	// Detached from the originating request: the timeout is the only cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Event: name, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return &DeliveryError{Event: name, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Event: name, StatusCode: resp.StatusCode}
	}
	return nil
}
