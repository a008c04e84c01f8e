// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rtm-bot/translator-go/internal/buildinfo"
	"github.com/rtm-bot/translator-go/internal/command"
	"github.com/rtm-bot/translator-go/internal/config"
	"github.com/rtm-bot/translator-go/internal/ctxutil"
	"github.com/rtm-bot/translator-go/internal/engine"
	"github.com/rtm-bot/translator-go/internal/fetch"
	"github.com/rtm-bot/translator-go/internal/genai"
	"github.com/rtm-bot/translator-go/internal/language"
	"github.com/rtm-bot/translator-go/internal/line"
	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/media"
	"github.com/rtm-bot/translator-go/internal/messenger"
	"github.com/rtm-bot/translator-go/internal/metrics"
	"github.com/rtm-bot/translator-go/internal/r2client"
	"github.com/rtm-bot/translator-go/internal/ratelimit"
	"github.com/rtm-bot/translator-go/internal/sentry"
	"github.com/rtm-bot/translator-go/internal/session"
	"github.com/rtm-bot/translator-go/internal/storage"
	"github.com/rtm-bot/translator-go/internal/subscription"
	"github.com/rtm-bot/translator-go/internal/translate"
)

const (
	serviceName           = "rtm-translator"
	readinessCheckTimeout = 3 * time.Second
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg        *config.Config
	logger     *logger.Logger
	db         *storage.DB
	metrics    *metrics.Metrics
	registry   *prometheus.Registry
	sessions   *session.Store
	llmLimiter *ratelimit.KeyedLimiter
	messenger  *messenger.Handler // nil when the channel is not configured
	line       *line.Handler      // nil when the channel is not configured
	features   map[string]bool
	server     *http.Server
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	logOpts := logger.Options{Level: cfg.LogLevel, Writer: os.Stdout}
	if cfg.BetterStackEnabled {
		logOpts.BetterStackToken = cfg.BetterStackToken
		logOpts.BetterStackEndpoint = cfg.BetterStackEndpoint
	}
	log := logger.NewWithOptions(logOpts)

	name := cfg.ServerName
	if name == "" {
		name = serviceName
	}
	log = log.WithField("service", name)
	instance := cfg.InstanceID
	if instance == "" {
		instance, _ = os.Hostname()
	}
	if instance != "" {
		log = log.WithField("instance_id", instance)
	}

	// Package-level slog calls (genai) pick up the context fields too.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Release()).Info("Initializing application...")

	if cfg.SentryEnabled {
		release := cfg.SentryRelease
		if release == "" {
			release = buildinfo.Release()
		}
		if err := sentry.Initialize(sentry.Config{
			Token:       cfg.SentryToken,
			Host:        cfg.SentryHost,
			Environment: cfg.SentryEnvironment,
			Release:     release,
			SampleRate:  cfg.SentrySampleRate,
		}); err != nil {
			log.WithError(err).Warn("Sentry initialization failed")
		} else {
			log.WithField("host", cfg.SentryHost).Info("Error tracking enabled")
		}
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Subscription ledger opened")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	var store *r2client.Client
	if cfg.R2Enabled {
		store, err = r2client.New(ctx, r2client.Config{
			AccountID:     cfg.R2AccountID,
			AccessKeyID:   cfg.R2AccessKeyID,
			SecretKey:     cfg.R2SecretAccessKey,
			BucketName:    cfg.R2BucketName,
			PublicBaseURL: cfg.R2PublicBaseURL,
			Prefix:        cfg.R2MediaPrefix,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("r2: %w", err)
		}
		log.WithField("bucket", cfg.R2BucketName).Info("Media storage enabled")
	}

	httpClient := fetch.NewClient(cfg.Bot.ExternalCallTimeout, 2, config.ExternalRetryInitial)

	llmCfg := buildLLMConfig(cfg)
	assistant := genai.NewAssistant(
		genai.BuildChain(ctx, llmCfg, genai.CapabilityText, m),
		genai.BuildChain(ctx, llmCfg, genai.CapabilityVision, m),
	)

	var mediaStore media.Store
	if store != nil {
		mediaStore = store
	}
	speech := media.NewSpeech(media.SpeechConfig{
		APIKey:           cfg.OpenAIAPIKey,
		Model:            cfg.TTSModel,
		Voice:            cfg.TTSVoice,
		Store:            mediaStore,
		FallbackTemplate: cfg.SpeechFallbackTemplate,
		Timeout:          cfg.Bot.ExternalCallTimeout,
		Metrics:          m,
	})
	images := media.NewImages(media.ImagesConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.ImageModel,
		Size:    cfg.ImageSize,
		Store:   mediaStore,
		HTTP:    httpClient,
		Metrics: m,
	})

	facade := buildFacade(cfg, httpClient, assistant, speech, m, log)

	llmLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "llm",
		Burst:         cfg.Bot.LLMBurstTokens,
		RefillRate:    cfg.Bot.LLMRefillPerHour / 3600.0,
		DailyLimit:    cfg.Bot.LLMDailyLimit,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	deps := command.Deps{
		Assistant:   assistant,
		Images:      images,
		Downloader:  httpClient,
		Quota:       llmLimiter,
		CallTimeout: cfg.Bot.ExternalCallTimeout,
		Logger:      log,
	}
	commands := command.NewRegistry()
	commands.Register(command.NewHelp(commands))
	commands.Register(command.NewAI(deps))
	commands.Register(command.NewImagine(deps))

	sessions := session.NewStore(session.Config{
		IdleTTL:       cfg.SessionIdleTTL,
		SweepInterval: cfg.SessionSweepInterval,
		MaxEntries:    cfg.SessionMaxEntries,
		Metrics:       m,
		Logger:        log,
	})

	gate := subscription.New(subscription.Config{
		Codes:   cfg.ActivationCodes,
		Period:  cfg.SubscriptionPeriod,
		Ledger:  db,
		Restore: cfg.SubscriptionRestore,
		Metrics: m,
		Logger:  log,
	})
	if len(cfg.ActivationCodes) == 0 {
		log.Warn("No activation codes configured; nobody can subscribe")
	}

	eng := engine.New(engine.Config{
		Sessions:        sessions,
		Gate:            gate,
		Facade:          facade,
		Commands:        commands,
		DefaultAnalyzer: command.NewVisionAnalyzer(deps),
		ChunkLimit:      cfg.Bot.ChunkLimit,
		FailurePolicy:   cfg.Bot.CommandFailurePolicy,
		TurnTimeout:     cfg.Bot.WebhookTimeout,
		Metrics:         m,
		Logger:          log,
	})

	app := &Application{
		cfg:        cfg,
		logger:     log,
		db:         db,
		metrics:    m,
		registry:   registry,
		sessions:   sessions,
		llmLimiter: llmLimiter,
		features: map[string]bool{
			"llm_text":      assistant.HasText(),
			"llm_vision":    assistant.HasVision(),
			"llm_translate": cfg.LLMTranslateFallback && assistant.HasText(),
			"speech":        speech.Enabled(),
			"images":        images.Enabled(),
			"media_storage": store != nil,
		},
	}

	if cfg.HasMessenger() {
		client := messenger.NewClient(messenger.ClientConfig{
			PageToken:    cfg.MessengerPageToken,
			GraphURL:     cfg.MessengerGraphURL,
			APIVersion:   cfg.MessengerAPIVersion,
			HTTP:         httpClient,
			RateLimitRPS: cfg.Bot.GlobalRateLimitRPS,
			Metrics:      m,
			Logger:       log,
		})
		app.messenger = messenger.NewHandler(messenger.HandlerConfig{
			VerifyToken: cfg.MessengerVerifyToken,
			AppSecret:   cfg.MessengerAppSecret,
			MaxEvents:   cfg.Bot.MaxEventsPerWebhook,
			Engine:      eng,
			Deliverer:   client,
			Metrics:     m,
			Logger:      log,
		})
		if cfg.MessengerAppSecret == "" {
			log.Warn("Messenger app secret not set; webhook signatures are not verified")
		}
	}

	if cfg.HasLINE() {
		api, err := line.NewAPI(cfg.LineChannelToken)
		if err != nil {
			_ = db.Close()
			llmLimiter.Stop()
			return nil, fmt.Errorf("line: %w", err)
		}
		var lineImages line.ImageStore
		if store != nil {
			lineImages = store
		}
		app.line = line.NewHandler(line.HandlerConfig{
			ChannelSecret: cfg.LineChannelSecret,
			API:           api,
			Engine:        eng,
			Images:        lineImages,
			MaxEvents:     cfg.Bot.MaxEventsPerWebhook,
			RateLimitRPS:  cfg.Bot.GlobalRateLimitRPS,
			Metrics:       m,
			Logger:        log,
		})
	}
	app.features["messenger"] = app.messenger != nil
	app.features["line"] = app.line != nil

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.WithField("features", app.features).Info("Initialization complete")
	return app, nil
}

// buildFacade assembles the translation chain: the dictionary API first,
// then the LLM when enabled.
func buildFacade(cfg *config.Config, hc *fetch.Client, assistant *genai.Assistant, speech *media.Speech, m *metrics.Metrics, log *logger.Logger) *translate.Facade {
	translators := []translate.Translator{translate.NewMyMemory(hc, cfg.MyMemoryURL, cfg.MyMemoryEmail)}
	if cfg.LLMTranslateFallback && assistant.HasText() {
		translators = append(translators, translate.NewLLMTranslator(assistant))
	}

	fallback, ok := language.Parse(cfg.Bot.DefaultLanguage)
	if !ok {
		fallback = language.EN
	}
	facadeCfg := translate.Config{
		Detector: language.NewDetector(language.FallbackPolicy{
			Default:       fallback,
			MinConfidence: cfg.Bot.DetectMinConfidence,
		}),
		Translators: translators,
		CallTimeout: cfg.Bot.ExternalCallTimeout,
		Metrics:     m,
		Logger:      log,
	}
	if assistant.HasText() {
		facadeCfg.Explainer = assistant
	}
	if speech.Enabled() {
		facadeCfg.Speech = speech
	}
	return translate.NewFacade(facadeCfg)
}

// buildLLMConfig creates an LLMConfig from the application config.
func buildLLMConfig(cfg *config.Config) genai.LLMConfig {
	llmCfg := genai.DefaultLLMConfig()

	llmCfg.Gemini.APIKey = cfg.GeminiAPIKey
	llmCfg.Groq.APIKey = cfg.GroqAPIKey
	llmCfg.Cerebras.APIKey = cfg.CerebrasAPIKey
	llmCfg.OpenAI.APIKey = cfg.OpenAIAPIKey

	if len(cfg.GeminiTextModels) > 0 {
		llmCfg.Gemini.TextModels = cfg.GeminiTextModels
	}
	if len(cfg.GeminiVisionModels) > 0 {
		llmCfg.Gemini.VisionModels = cfg.GeminiVisionModels
	}
	if len(cfg.GroqTextModels) > 0 {
		llmCfg.Groq.TextModels = cfg.GroqTextModels
	}
	if len(cfg.GroqVisionModels) > 0 {
		llmCfg.Groq.VisionModels = cfg.GroqVisionModels
	}
	if len(cfg.CerebrasTextModels) > 0 {
		llmCfg.Cerebras.TextModels = cfg.CerebrasTextModels
	}
	if len(cfg.OpenAITextModels) > 0 {
		llmCfg.OpenAI.TextModels = cfg.OpenAITextModels
	}
	if len(cfg.OpenAIVisionModels) > 0 {
		llmCfg.OpenAI.VisionModels = cfg.OpenAIVisionModels
	}
	if len(cfg.LLMProviders) > 0 {
		providers := make([]genai.Provider, 0, len(cfg.LLMProviders))
		for _, p := range cfg.LLMProviders {
			switch p {
			case "gemini":
				providers = append(providers, genai.ProviderGemini)
			case "groq":
				providers = append(providers, genai.ProviderGroq)
			case "cerebras":
				providers = append(providers, genai.ProviderCerebras)
			case "openai":
				providers = append(providers, genai.ProviderOpenAI)
			default:
				slog.Warn("ignoring unknown provider", "name", p)
			}
		}
		if len(providers) > 0 {
			llmCfg.Providers = providers
		}
	}

	return llmCfg
}

// routes builds the HTTP router.
func (a *Application) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.serviceInfo)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)

	if a.messenger != nil {
		router.GET("/webhook", a.messenger.Verify)
		router.POST("/webhook", a.messenger.Receive)
	}
	if a.line != nil {
		router.POST("/line/webhook", a.line.Handle)
	}

	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsAuthEnabled, a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	return router
}

func (a *Application) serviceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": buildinfo.Release(),
	})
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"sessions": a.sessions.Len(),
		"features": a.features,
	})
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM, then
// shuts down: the server first, then in-flight turns, then resources.
func (a *Application) Run() error {
	a.sessions.Start()

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case runErr = <-errCh:
		a.logger.WithError(runErr).Error("HTTP server error")
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown performs graceful shutdown of the HTTP server and resources.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for in-flight turns to complete...")
	if err := a.drainChannels(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Channel shutdown timeout")
	}

	a.logger.Info("Closing resources...")
	a.sessions.Stop()
	a.llmLimiter.Stop()

	var closeErr error
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
		closeErr = err
	}

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}
	return closeErr
}

// drainChannels waits for every configured channel's in-flight turns.
func (a *Application) drainChannels(ctx context.Context) error {
	var g errgroup.Group
	if a.messenger != nil {
		g.Go(func() error { return a.messenger.Shutdown(ctx) })
	}
	if a.line != nil {
		g.Go(func() error { return a.line.Shutdown(ctx) })
	}
	return g.Wait()
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, everything else Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Header("X-Request-Id", requestID)

		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP()).
			WithRequestID(requestID)

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != http.StatusNotFound:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
