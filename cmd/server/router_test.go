package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qa-dashboard/backend/internal/auth"
	"github.com/qa-dashboard/backend/internal/lifecycle"
	"github.com/qa-dashboard/backend/internal/middleware"
	"github.com/qa-dashboard/backend/internal/notify"
	"github.com/qa-dashboard/backend/internal/questions"
	"github.com/qa-dashboard/backend/internal/realtime"
	"github.com/qa-dashboard/backend/internal/store/memory"
)

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func testServer(t *testing.T, limiter middleware.Limiter, ping func(context.Context) error) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	store := memory.New()
	jwtSvc := auth.NewJWTService("test-secret", 1)
	require.NoError(t, auth.EnsureAdmin(context.Background(), store, "admin", "admin@example.com", "admin123", logger))

	hub := realtime.NewHub(logger)
	t.Cleanup(hub.Close)
	dispatcher := notify.NewDispatcher(notify.Config{}, nil, logger)
	engine := lifecycle.NewEngine(store, store, hub, dispatcher, clockwork.NewRealClock(), logger)

	router := newRouter(routerDeps{
		CORSOrigins: "*",
		Auth:        auth.NewHandler(store, jwtSvc, logger),
		Questions:   questions.NewHandler(engine, logger),
		JWT:         jwtSvc,
		Hub:         hub,
		Limiter:     limiter,
		Ping:        ping,
		Logger:      logger,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, hub
}

func post(t *testing.T, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &env)
	return resp, env
}

func readFrame(t *testing.T, conn *ws.Conn) (string, map[string]any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &frame))
	return frame.Type, frame.Data
}

func TestServer_QuestionFlowReachesViewers(t *testing.T) {
	server, hub := testServer(t, nil, nil)

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/questions", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	resp, env := post(t, server.URL+"/questions", "", `{"message":"Is this recorded?"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := env["data"].(map[string]any)
	id := int64(data["question_id"].(float64))

	typ, frame := readFrame(t, conn)
	assert.Equal(t, "new_question", typ)
	assert.Equal(t, "Is this recorded?", frame["message"])
	assert.Equal(t, []any{}, frame["answers"])

	resp, env = post(t, server.URL+"/auth/login", "", `{"email":"admin@example.com","password":"admin123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := env["data"].(map[string]any)["access_token"].(string)

	resp, _ = post(t, server.URL+"/questions/"+itoa(id)+"/escalate", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	typ, frame = readFrame(t, conn)
	assert.Equal(t, "status_update", typ)
	assert.Equal(t, "Escalated", frame["status"])

	resp, _ = post(t, server.URL+"/questions/"+itoa(id)+"/answer", "", `{"message":"Yes"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	typ, frame = readFrame(t, conn)
	assert.Equal(t, "new_answer", typ)
	assert.Equal(t, float64(id), frame["question_id"])
	assert.Equal(t, "Yes", frame["answer"].(map[string]any)["message"])
}

func TestServer_RateLimitedSubmission(t *testing.T) {
	server, _ := testServer(t, denyAll{}, nil)

	resp, _ := post(t, server.URL+"/questions", "", `{"message":"spam"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	list, err := http.Get(server.URL + "/questions")
	require.NoError(t, err)
	defer list.Body.Close()
	assert.Equal(t, http.StatusOK, list.StatusCode, "reads are not rate limited")
}

func TestServer_Health(t *testing.T) {
	server, _ := testServer(t, nil, nil)
	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down, _ := testServer(t, nil, func(context.Context) error { return errors.New("connection refused") })
	resp, err = http.Get(down.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	server, _ := testServer(t, nil, nil)
	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "qa_connected_viewers")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
