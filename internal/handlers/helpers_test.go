package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowra-dev/flowra/internal/auth"
	"github.com/flowra-dev/flowra/internal/config"
	"github.com/flowra-dev/flowra/internal/handlers"
	"github.com/flowra-dev/flowra/internal/models"
	"github.com/flowra-dev/flowra/internal/ratelimit"
	"github.com/flowra-dev/flowra/internal/router"
	"github.com/flowra-dev/flowra/internal/scheduler"
	"github.com/flowra-dev/flowra/internal/services"
	"github.com/flowra-dev/flowra/internal/testutil"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const cronSecret = "cron-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
	types.RegisterValidators()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	sched  *scheduler.Scheduler
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Environment = "test"
	cfg.ClientURL = "http://localhost:5173"
	cfg.Auth.JWTSecret = testutil.JWTSecret
	cfg.Auth.CronSecret = cronSecret
	cfg.RateLimit.AuthLimit = 1000
	return cfg
}

// newServer wires the full router against a fresh in-memory database.
func newServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	return newServerWithProviders(t, nil, mutate...)
}

func newServerWithProviders(t *testing.T, providers auth.Providers, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	testutil.SetupDB(t)

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	notifier := services.NewNotifier(nil, cfg.ClientURL, nil)
	discord := services.NewDiscordClient("Flowra", "", cfg.ClientURL)
	sched := scheduler.NewScheduler(notifier, discord, time.Hour, nil)
	t.Cleanup(sched.Stop)

	h := handlers.NewHandler(handlers.Dependencies{
		Config:    cfg,
		Notifier:  notifier,
		Discord:   discord,
		Scheduler: sched,
		Providers: providers,
	})

	return &testServer{
		t:      t,
		engine: router.NewRouter(cfg, h, ratelimit.NewMemoryLimiter(), zap.NewNop()),
		sched:  sched,
	}
}

// do sends a JSON request as user (zero value for anonymous) and decodes the
// response envelope.
func (s *testServer) do(method, path string, user models.User, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	header := http.Header{}
	if user.ID != 0 {
		header.Set("Authorization", testutil.BearerToken(s.t, user))
	}

	return s.send(method, path, header, body)
}

// cron calls a scheduler endpoint with the shared cron secret.
func (s *testServer) cron(method, path string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	header := http.Header{}
	header.Set("X-Cron-Secret", cronSecret)

	return s.send(method, path, header, nil)
}

func (s *testServer) send(method, path string, header http.Header, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key := range header {
		req.Header.Set(key, header.Get(key))
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}

	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), "data: %s", string(env.Data))
	return out
}

// field extracts one top-level key from a JSON object.
func field(t *testing.T, raw json.RawMessage, key string) json.RawMessage {
	t.Helper()

	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &obj))
	value, ok := obj[key]
	require.True(t, ok, "missing %q in %s", key, string(raw))
	return value
}
