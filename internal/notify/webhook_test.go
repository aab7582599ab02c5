package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qa-dashboard/backend/internal/lifecycle"
	"github.com/qa-dashboard/backend/internal/models"
)

var ts = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func events() []lifecycle.Event {
	name := "ada"
	q := &models.Question{ID: 7, Username: &name, Message: "hi", CreatedAt: ts, Status: models.StatusPending}
	return []lifecycle.Event{
		{Kind: lifecycle.KindNewQuestion, Question: q},
		{Kind: lifecycle.KindNewAnswer, Answer: &models.Answer{ID: 3, QuestionID: 7, Message: "yes", CreatedAt: ts}},
		{Kind: lifecycle.KindStatusChanged, Question: &models.Question{ID: 7, Message: "hi", CreatedAt: ts, Status: models.StatusAnswered}},
		{Kind: lifecycle.KindStatusChanged, Question: &models.Question{ID: 7, Message: "hi", CreatedAt: ts, Status: models.StatusEscalated}},
	}
}

func wait(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestNotify_PostsEachEvent(t *testing.T) {
	var mu sync.Mutex
	var got []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		assert.NoError(t, json.Unmarshal(body, &payload))
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	d := NewDispatcher(Config{URL: server.URL}, server.Client(), zaptest.NewLogger(t))
	for _, ev := range events() {
		d.Notify(ev)
	}
	wait(t, d)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	byEvent := make(map[string]map[string]any)
	for _, p := range got {
		byEvent[p["event"].(string)] = p
	}
	assert.Equal(t, map[string]any{
		"event": "new_question", "question_id": float64(7), "message": "hi", "username": "ada", "timestamp": "2024-03-01T09:30:00Z",
	}, byEvent["new_question"])
	assert.Equal(t, map[string]any{
		"event": "new_answer", "answer_id": float64(3), "question_id": float64(7), "message": "yes", "username": nil, "timestamp": "2024-03-01T09:30:00Z",
	}, byEvent["new_answer"])
	assert.Equal(t, map[string]any{
		"event": "question_answered", "question_id": float64(7), "message": "hi", "timestamp": "2024-03-01T09:30:00Z",
	}, byEvent["question_answered"])
	assert.Contains(t, byEvent, "question_escalated")
}

func TestNotify_DisabledWithoutURL(t *testing.T) {
	var calls atomic.Int32
	d := NewDispatcher(Config{}, DoerFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("unexpected call")
	}), nil)

	assert.False(t, d.Enabled())
	for _, ev := range events() {
		d.Notify(ev)
	}
	wait(t, d)

	assert.Equal(t, int32(0), calls.Load())
}

func TestDeliver_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	d := NewDispatcher(Config{URL: server.URL}, server.Client(), nil)

	err := d.deliver("new_question", events()[0].WebhookPayload())

	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, http.StatusInternalServerError, delivery.StatusCode)
	assert.Equal(t, "new_question", delivery.Event)
}

func TestDeliver_TransportError(t *testing.T) {
	refused := errors.New("connection refused")
	d := NewDispatcher(Config{URL: "http://hooks.invalid"}, DoerFunc(func(*http.Request) (*http.Response, error) {
		return nil, refused
	}), nil)

	err := d.deliver("new_answer", events()[1].WebhookPayload())

	assert.ErrorIs(t, err, refused)
}

func TestNotify_HangingEndpointIsBoundedAndDetached(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	const timeout = 100 * time.Millisecond
	d := NewDispatcher(Config{URL: server.URL, Timeout: timeout}, server.Client(), nil)

	start := time.Now()
	d.Notify(events()[0])
	assert.Less(t, time.Since(start), timeout, "Notify must not wait for the round-trip")

	wait(t, d)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestDeliver_TimeoutError(t *testing.T) {
	d := NewDispatcher(Config{URL: "http://hooks.invalid", Timeout: 20 * time.Millisecond}, DoerFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}), nil)

	err := d.deliver("new_question", events()[0].WebhookPayload())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeliver_BreakerSkipsAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	d := NewDispatcher(Config{URL: "http://hooks.invalid", BreakerFailures: 2, BreakerOpen: time.Minute},
		DoerFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("down")
		}), zaptest.NewLogger(t))

	payload := events()[0].WebhookPayload()
	for range 5 {
		_ = d.deliver("new_question", payload)
	}

	assert.Equal(t, int32(2), calls.Load())
	assert.ErrorIs(t, d.deliver("new_question", payload), gobreaker.ErrOpenState)
}

func TestNotify_PanickingTransportIsContained(t *testing.T) {
	d := NewDispatcher(Config{URL: "http://hooks.invalid"}, DoerFunc(func(*http.Request) (*http.Response, error) {
		panic("transport bug")
	}), nil)

	d.Notify(events()[0])
	wait(t, d)
}

func TestWait_RespectsContext(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	d := NewDispatcher(Config{URL: "http://hooks.invalid", Timeout: time.Minute}, DoerFunc(func(*http.Request) (*http.Response, error) {
		<-block
		return nil, errors.New("released")
	}), nil)

	d.Notify(events()[0])
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
}
