package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm-bot/translator-go/internal/config"
	"github.com/rtm-bot/translator-go/internal/ctxutil"
	"github.com/rtm-bot/translator-go/internal/genai"
	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/messenger"
	"github.com/rtm-bot/translator-go/internal/metrics"
	"github.com/rtm-bot/translator-go/internal/session"
	"github.com/rtm-bot/translator-go/internal/storage"
)

// setupTestApp creates a minimal Application for testing endpoints
func setupTestApp(t *testing.T) *Application {
	t.Helper()

	// A file per test keeps parallel tests off a shared in-memory database.
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	log := logger.NewWithWriter("error", io.Discard)

	return &Application{
		cfg: &config.Config{
			MetricsUsername: "prometheus",
		},
		db:       db,
		metrics:  m,
		registry: registry,
		logger:   log,
		sessions: session.NewStore(session.Config{Metrics: m}),
		features: map[string]bool{"messenger": true, "line": false},
	}
}

func get(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]any
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	router := gin.New()
	router.GET("/livez", app.livenessCheck)

	w, body := get(t, router, "/livez")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestLivenessCheckAlwaysSucceeds(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	_ = app.db.Close()

	router := gin.New()
	router.GET("/livez", app.livenessCheck)

	w, _ := get(t, router, "/livez")
	assert.Equal(t, http.StatusOK, w.Code, "liveness must not depend on the database")
}

func TestReadinessCheckHealthy(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	router := gin.New()
	router.GET("/readyz", app.readinessCheck)

	w, body := get(t, router, "/readyz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.EqualValues(t, 0, body["sessions"])

	features, ok := body["features"].(map[string]any)
	require.True(t, ok, "expected features in response")
	assert.Equal(t, true, features["messenger"])
	assert.Equal(t, false, features["line"])
}

func TestReadinessCheckDatabaseFailure(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	_ = app.db.Close()

	router := gin.New()
	router.GET("/readyz", app.readinessCheck)

	w, body := get(t, router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "database unavailable", body["reason"])
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	withMessenger := setupTestApp(t)
	withMessenger.messenger = messenger.NewHandler(messenger.HandlerConfig{VerifyToken: "tok"})
	router := withMessenger.routes()

	w, body := get(t, router, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, serviceName, body["service"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w, _ = get(t, router, "/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=42")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w, _ = get(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = get(t, router, "/line/webhook")
	assert.Equal(t, http.StatusNotFound, w.Code, "LINE routes only exist when the channel is configured")

	without := setupTestApp(t)
	w, _ = get(t, without.routes(), "/webhook")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsRequireAuthWhenEnabled(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	app.cfg.MetricsAuthEnabled = true
	app.cfg.MetricsPassword = "secret"

	w, _ := get(t, app.routes(), "/metrics")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDrainChannels(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)
	app.messenger = messenger.NewHandler(messenger.HandlerConfig{VerifyToken: "tok"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, app.drainChannels(ctx))
}

func TestBuildLLMConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		GeminiAPIKey:       "g",
		OpenAIAPIKey:       "o",
		GroqTextModels:     []string{"custom-groq"},
		OpenAIVisionModels: []string{"gpt-vision"},
		LLMProviders:       []string{"openai", "unknown", "gemini"},
	}
	llmCfg := buildLLMConfig(cfg)

	assert.Equal(t, []genai.Provider{genai.ProviderOpenAI, genai.ProviderGemini}, llmCfg.Providers)
	assert.Equal(t, "g", llmCfg.Gemini.APIKey)
	assert.Equal(t, "o", llmCfg.OpenAI.APIKey)
	assert.Equal(t, []string{"custom-groq"}, llmCfg.Groq.TextModels)
	assert.Equal(t, []string{"gpt-vision"}, llmCfg.OpenAI.VisionModels)
	assert.Equal(t, genai.DefaultGeminiTextModels, llmCfg.Gemini.TextModels)
	assert.Equal(t, []genai.Provider{genai.ProviderOpenAI, genai.ProviderGemini}, llmCfg.ConfiguredProviders())
}

func TestBuildLLMConfigDefaults(t *testing.T) {
	t.Parallel()

	llmCfg := buildLLMConfig(&config.Config{})
	assert.Equal(t, genai.DefaultProviders, llmCfg.Providers)
	assert.False(t, llmCfg.HasAnyProvider())
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	t.Parallel()

	var seen string
	router := gin.New()
	router.Use(loggingMiddleware(logger.NewWithWriter("error", io.Discard)))
	router.GET("/ping", func(c *gin.Context) {
		seen, _ = ctxutil.GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-Id", "corr-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "corr-1", seen)
	assert.Equal(t, "corr-1", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get("X-Request-Id")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, seen)
}
