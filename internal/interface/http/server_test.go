package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alem-hub/lingua-hub/internal/application/command"
	"github.com/alem-hub/lingua-hub/internal/application/query"
	"github.com/alem-hub/lingua-hub/internal/application/workflow"
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/lingua-hub/pkg/logger"
	"github.com/alem-hub/lingua-hub/pkg/timeutil"
)

const testUser = "6f1c2b4e-2d8a-4c33-9a55-0e7d1b2c3f40"

type fakeMetrics struct {
	mu       sync.Mutex
	requests []string
}

func (m *fakeMetrics) RecordRequest(method, route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, fmt.Sprintf("%s %s %d", method, route, status))
}

func (m *fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("lingua_up 1\n"))
	})
}

func (m *fakeMetrics) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

type testEnv struct {
	server  *Server
	clock   *timeutil.FixedClock
	metrics *fakeMetrics
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	clock := timeutil.NewFixedClock(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	runner := workflow.NewRunner(memory.NewEconomyRepository(), memory.NewKeyedLocker(), clock, nil,
		workflow.Config{Economy: economy.DefaultConfig()})

	cfg := DefaultConfig()
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}

	metrics := &fakeMetrics{}
	srv, err := NewServer(cfg, Dependencies{
		ProvisionEconomy:   command.NewProvisionEconomyHandler(runner),
		SpendHearts:        command.NewSpendHeartsHandler(runner),
		RefillHearts:       command.NewRefillHeartsHandler(runner),
		PurchasePowerUp:    command.NewPurchasePowerUpHandler(runner),
		RecordLesson:       command.NewRecordLessonHandler(runner),
		GetEconomySnapshot: query.NewGetEconomySnapshotHandler(runner),
		GetDailyQuests:     query.NewGetDailyQuestsHandler(runner),
		GetCatalog:         query.NewGetCatalogHandler(),
		Logger:             logger.Nop(),
		Metrics:            metrics,
	})
	require.NoError(t, err)

	return &testEnv{server: srv, clock: clock, metrics: metrics}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:5555"
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (e *testEnv) provision(t *testing.T) {
	t.Helper()
	rec, _ := e.do(t, http.MethodPost, "/api/v1/users/"+testUser+"/economy", "")
	require.Equal(t, http.StatusCreated, rec.Code)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestServer_ProvisionAndGet(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/api/v1/users/"+testUser+"/economy", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	snap := decode[economy.Snapshot](t, body.Data)
	assert.Equal(t, economy.DefaultStartingGems, snap.Gems)
	assert.Equal(t, economy.DefaultMaxHearts, snap.Hearts)
	assert.NotEmpty(t, body.RequestID)

	rec, body = env.do(t, http.MethodPost, "/api/v1/users/"+testUser+"/economy", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", body.Error.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/"+testUser+"/economy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
}

func TestServer_ErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provision(t)
	base := "/api/v1/users/" + testUser

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"invalid user id", http.MethodGet, "/api/v1/users/not-a-uuid/economy", "", http.StatusBadRequest, "validation"},
		{"unknown user", http.MethodGet, "/api/v1/users/" + "00000000-0000-4000-8000-000000000001/economy", "", http.StatusNotFound, "not_found"},
		{"spend out of range", http.MethodPost, base + "/hearts/spend", `{"amount":6}`, http.StatusBadRequest, "validation"},
		{"spend bad json", http.MethodPost, base + "/hearts/spend", `{"amount":`, http.StatusBadRequest, "invalid_request"},
		{"refill when full", http.MethodPost, base + "/hearts/refill", "", http.StatusConflict, "already_full"},
		{"unknown power-up", http.MethodPost, base + "/powerups/rocket", "", http.StatusBadRequest, "validation"},
		{"negative xp", http.MethodPost, base + "/lessons/complete", `{"xpEarned":-1}`, http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.False(t, body.Success)
		})
	}
}

func TestServer_HeartsFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provision(t)
	base := "/api/v1/users/" + testUser

	rec, body := env.do(t, http.MethodPost, base+"/hearts/spend", `{"amount":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	spent := decode[spendHeartsResponse](t, body.Data)
	assert.Equal(t, 5, spent.Spent)
	assert.Equal(t, 0, spent.Snapshot.Hearts)

	rec, body = env.do(t, http.MethodPost, base+"/hearts/spend", `{"amount":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_hearts_remaining", body.Error.Code)

	rec, body = env.do(t, http.MethodPost, base+"/hearts/refill", "")
	require.Equal(t, http.StatusOK, rec.Code)
	refill := decode[refillHeartsResponse](t, body.Data)
	assert.Equal(t, 100, refill.Cost)
	assert.Equal(t, economy.DefaultMaxHearts, refill.Snapshot.Hearts)
	assert.Equal(t, economy.DefaultStartingGems-100, refill.Snapshot.Gems)
}

func TestServer_PurchaseAndLesson(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provision(t)
	base := "/api/v1/users/" + testUser

	rec, body := env.do(t, http.MethodPost, base+"/powerups/streak_freeze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	purchase := decode[purchaseResponse](t, body.Data)
	assert.Equal(t, economy.PowerUpStreakFreeze, purchase.Type)
	assert.Equal(t, 200, purchase.Cost)
	require.NotNil(t, purchase.Detail.StreakFreezes)
	assert.Equal(t, 1, *purchase.Detail.StreakFreezes)
	assert.Equal(t, 1, purchase.Snapshot.StreakFreezes)

	rec, body = env.do(t, http.MethodPost, base+"/lessons/complete", `{"xpEarned":60,"timeSpentSeconds":120}`)
	require.Equal(t, http.StatusOK, rec.Code)
	lesson := decode[completeLessonResponse](t, body.Data)
	assert.Equal(t, 1, lesson.Streak.Current)
	assert.Equal(t, 20, lesson.QuestRewards.Gems)
	assert.Nil(t, lesson.Wager)

	rec, body = env.do(t, http.MethodGet, base+"/quests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	quests := decode[query.DailyQuestsResult](t, body.Data)
	require.Len(t, quests.Quests, 3)
	assert.Positive(t, quests.ResetInSeconds)

	rec, body = env.do(t, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	catalog := decode[query.CatalogResult](t, body.Data)
	assert.Len(t, catalog.PowerUps, 6)
}

func TestServer_RecordsRoutePattern(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provision(t)

	env.do(t, http.MethodGet, "/api/v1/users/"+testUser+"/economy", "")
	env.do(t, http.MethodGet, "/nope", "")

	assert.Equal(t, []string{
		"POST POST /api/v1/users/{id}/economy 201",
		"GET GET /api/v1/users/{id}/economy 200",
		"GET unmatched 404",
	}, env.metrics.recorded())
}

func TestServer_Probes(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/health", "/ready", "/live"} {
		rec, _ := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec, _ := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lingua_up")

	require.NoError(t, env.server.Shutdown(context.Background()))
	rec, _ = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_HealthReportsFailingCheck(t *testing.T) {
	checker := NewCompositeHealthChecker("test")
	checker.AddCheck("memory", PingCheck(memory.NewEconomyRepository()))
	checker.AddCheck("postgres", func(context.Context) error { return errors.New("connection refused") })

	env := newTestEnv(t, nil)
	env.server.deps.HealthChecker = checker

	rec, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	status := decode[HealthStatus](t, body.Data)
	assert.False(t, status.Healthy)
	assert.True(t, status.Checks["memory"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["postgres"].Message)

	rec, _ = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_APIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	env := newTestEnv(t, func(c *Config) { c.APIKeyHashes = []string{string(hash)} })

	rec, body := env.do(t, http.MethodGet, "/api/v1/catalog", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_api_key", body.Error.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/catalog", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_api_key", body.Error.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/catalog", "", "X-API-Key", "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/catalog", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 2
		c.TrustedProxies = []string{"10.0.0.1"}
	})

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/catalog", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := env.do(t, http.MethodGet, "/api/v1/catalog", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", body.Error.Code)

	// Another client behind the trusted proxy has its own bucket.
	rec, _ = env.do(t, http.MethodGet, "/api/v1/catalog", "", "X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Probes are never limited.
	rec, _ = env.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})

	rec, _ := env.do(t, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		rec, _ = env.do(t, http.MethodGet, "/api/v1/catalog", "", "X-Forwarded-For", ip, "X-Real-IP", ip)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, ip)
	}
}

func TestServer_ClientIP(t *testing.T) {
	srv := newTestEnv(t, func(c *Config) {
		c.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.10"}
	}).server

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"untrusted peer ignores headers", "203.0.113.5:4000", "1.2.3.4", "5.6.7.8", "203.0.113.5"},
		{"trusted peer without headers", "10.1.1.1:4000", "", "", "10.1.1.1"},
		{"trusted peer single hop", "10.1.1.1:4000", "198.51.100.7", "", "198.51.100.7"},
		{"spoofed leftmost hop is skipped", "10.1.1.1:4000", "1.2.3.4, 198.51.100.7", "", "198.51.100.7"},
		{"trusted hops are walked", "10.1.1.1:4000", "198.51.100.7, 192.0.2.10, 10.2.2.2", "", "198.51.100.7"},
		{"all hops trusted", "10.1.1.1:4000", "10.3.3.3, 10.2.2.2", "", "10.3.3.3"},
		{"real ip fallback", "192.0.2.10:4000", "", "198.51.100.9", "198.51.100.9"},
		{"ipv4-mapped peer", "[::ffff:10.1.1.1]:4000", "198.51.100.7", "", "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, srv.clientIP(req))
		})
	}
}

func TestNewServer_RejectsBadTrustedProxy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrustedProxies = []string{"lb.internal"}

	_, err := NewServer(cfg, Dependencies{Logger: logger.Nop()})
	assert.Error(t, err)
}

func TestServer_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	env.provision(t)

	body := `{"amount": 1, "pad": "` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec, resp := env.do(t, http.MethodPost, "/api/v1/users/"+testUser+"/hearts/spend", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request_too_large", resp.Error.Code)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/users/"+testUser+"/hearts/spend", `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", resp.Error.Code)
}

func TestServer_ContextErrorsStayOutOfErrorLog(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		err    error
		status int
		code   string
		level  string
	}{
		{fmt.Errorf("spend_hearts: %w", context.Canceled), statusClientClosedRequest, "canceled", "DEBUG"},
		{fmt.Errorf("spend_hearts: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "timeout", "WARN"},
		{shared.Internal("economy", "Get", errors.New("db down")), http.StatusInternalServerError, "internal", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(logger.Options{Output: &buf, Level: logger.LevelDebug})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/"+testUser+"/hearts/spend", nil)
			req = req.WithContext(logger.WithContext(req.Context(), log))
			rec := httptest.NewRecorder()

			env.server.writeError(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var resp envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)

			var entry logger.LogEntry
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.level, entry.Level)
		})
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.AllowedOrigins = []string{"https://app.example"} })

	rec, _ := env.do(t, http.MethodOptions, "/api/v1/catalog", "",
		"Origin", "https://app.example", "Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = env.do(t, http.MethodGet, "/api/v1/catalog", "", "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RecoversFromPanic(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.router.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec, body := env.do(t, http.MethodGet, "/boom", "", "X-Request-ID", "req-1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", body.Error.Code)
	assert.Equal(t, "req-1", body.RequestID)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{shared.ErrInvalidHeartAmount, http.StatusBadRequest},
		{shared.ErrEconomyNotFound, http.StatusNotFound},
		{shared.ErrNotEnoughGems, http.StatusUnprocessableEntity},
		{shared.ErrOutOfHearts, http.StatusUnprocessableEntity},
		{shared.ErrHeartsAlreadyFull, http.StatusConflict},
		{shared.ErrHeartsUnlimited, http.StatusConflict},
		{shared.ErrWagerAlreadyActive, http.StatusConflict},
		{shared.ErrSuperTrialUsed, http.StatusConflict},
		{shared.ErrStaleRecord, http.StatusConflict},
		{shared.ErrPowerUpDisabled, http.StatusForbidden},
		{shared.ErrLockNotAcquired, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{context.Canceled, statusClientClosedRequest},
		{shared.Internal("economy", "Get", errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, errorStatus(fmt.Errorf("op: %w", tt.err)))
		})
	}

	assert.Equal(t, "An unexpected error occurred", errorMessage(shared.Internal("economy", "Get", errors.New("db down"))))
	assert.Equal(t, "not enough gems", errorMessage(fmt.Errorf("purchase: %w", shared.ErrNotEnoughGems)))
}
