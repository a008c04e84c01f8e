// Package config provides application configuration management.
// It loads settings from environment variables (optionally from a .env file)
// and validates them before the server starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Messenger channel
	MessengerPageToken   string
	MessengerVerifyToken string
	MessengerAppSecret   string // Enables X-Hub-Signature-256 verification when set
	MessengerAPIVersion  string
	MessengerGraphURL    string

	// LINE channel (optional)
	LineChannelToken  string
	LineChannelSecret string

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	ServerName      string
	InstanceID      string

	// Data Configuration
	DataDir string // Directory holding the subscription ledger database

	// Session store
	SessionSweepInterval time.Duration
	SessionIdleTTL       time.Duration
	SessionMaxEntries    int

	// Subscription
	ActivationCodes     []string
	SubscriptionPeriod  time.Duration
	SubscriptionRestore bool // Restore unexpired subscriptions from the ledger

	// Translation
	MyMemoryURL   string
	MyMemoryEmail string // Raises the anonymous MyMemory quota when set

	// LLM Configuration (empty model lists = use defaults from genai package)
	LLMProviders           []string
	GeminiAPIKey           string
	GroqAPIKey             string
	CerebrasAPIKey         string
	OpenAIAPIKey           string
	GeminiTextModels       []string
	GeminiVisionModels     []string
	GroqTextModels         []string
	GroqVisionModels       []string
	CerebrasTextModels     []string
	OpenAITextModels       []string
	OpenAIVisionModels     []string
	LLMTranslateFallback   bool // Use the LLM chain when MyMemory fails
	TTSModel               string
	TTSVoice               string
	ImageModel             string
	ImageSize              string
	SpeechFallbackTemplate string // URL template used when no TTS provider is configured

	// R2 media storage
	R2Enabled         bool
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
	R2MediaPrefix     string

	// Sentry (Better Stack errors)
	SentryEnabled     bool
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentryRelease     string
	SentrySampleRate  float64

	// Better Stack logs
	BetterStackEnabled  bool
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string

	// Bot Configuration (embedded)
	Bot BotConfig
}

// DefaultSpeechFallbackTemplate is the keyless text-to-speech endpoint.
// %s placeholders receive the URL-escaped text and the ISO 639-1 language.
const DefaultSpeechFallbackTemplate = "https://translate.google.com/translate_tts?ie=UTF-8&client=tw-ob&q=%s&tl=%s"

// Load reads configuration from environment variables.
// It attempts to load .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	bot := DefaultBotConfig()
	bot.WebhookTimeout = getDurationEnv(EnvWebhookTimeout, bot.WebhookTimeout)
	bot.ExternalCallTimeout = getDurationEnv(EnvExternalCallTimeout, bot.ExternalCallTimeout)
	bot.ChunkLimit = getIntEnv(EnvChunkLimit, bot.ChunkLimit)
	bot.CommandFailurePolicy = strings.ToLower(getEnv(EnvCommandFailurePolicy, bot.CommandFailurePolicy))
	bot.DefaultLanguage = strings.ToUpper(getEnv(EnvDefaultLanguage, bot.DefaultLanguage))
	bot.DetectMinConfidence = getFloatEnv(EnvDetectMinConfidence, bot.DetectMinConfidence)
	bot.GlobalRateLimitRPS = getFloatEnv(EnvGlobalRateRPS, bot.GlobalRateLimitRPS)
	bot.LLMBurstTokens = getFloatEnv(EnvLLMRateBurst, bot.LLMBurstTokens)
	bot.LLMRefillPerHour = getFloatEnv(EnvLLMRateRefill, bot.LLMRefillPerHour)
	bot.LLMDailyLimit = getIntEnv(EnvLLMRateDaily, bot.LLMDailyLimit)

	cfg := &Config{
		MessengerPageToken:   getEnv(EnvMessengerPageToken, ""),
		MessengerVerifyToken: getEnv(EnvMessengerVerifyToken, ""),
		MessengerAppSecret:   getEnv(EnvMessengerAppSecret, ""),
		MessengerAPIVersion:  getEnv(EnvMessengerAPIVersion, MessengerDefaultAPIVersion),
		MessengerGraphURL:    getEnv(EnvMessengerGraphURL, "https://graph.facebook.com"),

		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		ServerName:      getEnv(EnvServerName, ""),
		InstanceID:      getEnv(EnvInstanceID, ""),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		SessionSweepInterval: getDurationEnv(EnvSessionSweepInterval, SessionSweepInterval),
		SessionIdleTTL:       getDurationEnv(EnvSessionIdleTTL, SessionIdleTTL),
		SessionMaxEntries:    getIntEnv(EnvSessionMaxEntries, 100000),

		ActivationCodes:     getListEnv(EnvActivationCodes, nil),
		SubscriptionPeriod:  getDurationEnv(EnvSubscriptionPeriod, 30*24*time.Hour),
		SubscriptionRestore: getBoolEnv(EnvSubscriptionRestore, false),

		MyMemoryURL:   getEnv(EnvMyMemoryURL, "https://api.mymemory.translated.net/get"),
		MyMemoryEmail: getEnv(EnvMyMemoryEmail, ""),

		LLMProviders:           getListEnv(EnvLLMProviders, nil),
		GeminiAPIKey:           getEnv(EnvGeminiAPIKey, ""),
		GroqAPIKey:             getEnv(EnvGroqAPIKey, ""),
		CerebrasAPIKey:         getEnv(EnvCerebrasAPIKey, ""),
		OpenAIAPIKey:           getEnv(EnvOpenAIAPIKey, ""),
		GeminiTextModels:       getListEnv(EnvGeminiTextModels, nil),
		GeminiVisionModels:     getListEnv(EnvGeminiVisionModels, nil),
		GroqTextModels:         getListEnv(EnvGroqTextModels, nil),
		GroqVisionModels:       getListEnv(EnvGroqVisionModels, nil),
		CerebrasTextModels:     getListEnv(EnvCerebrasTextModels, nil),
		OpenAITextModels:       getListEnv(EnvOpenAITextModels, nil),
		OpenAIVisionModels:     getListEnv(EnvOpenAIVisionModels, nil),
		LLMTranslateFallback:   getBoolEnv(EnvLLMTranslateFallback, true),
		TTSModel:               getEnv(EnvTTSModel, "tts-1"),
		TTSVoice:               getEnv(EnvTTSVoice, "alloy"),
		ImageModel:             getEnv(EnvImageModel, "dall-e-3"),
		ImageSize:              getEnv(EnvImageSize, "1024x1024"),
		SpeechFallbackTemplate: getEnv(EnvSpeechFallback, DefaultSpeechFallbackTemplate),

		R2Enabled:         getBoolEnv(EnvR2Enabled, false),
		R2AccountID:       getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2PublicBaseURL:   strings.TrimRight(getEnv(EnvR2PublicBaseURL, ""), "/"),
		R2MediaPrefix:     getEnv(EnvR2MediaPrefix, "media"),

		SentryEnabled:     getBoolEnv(EnvSentryEnabled, false),
		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentryRelease:     getEnv(EnvSentryRelease, ""),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackEnabled:  getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),

		Bot: bot,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if !c.HasMessenger() && !c.HasLINE() {
		errs = append(errs, fmt.Errorf("at least one channel is required: set %s and %s, or %s and %s",
			EnvMessengerPageToken, EnvMessengerVerifyToken, EnvLineChannelAccessToken, EnvLineChannelSecret))
	}
	if c.MessengerPageToken != "" && c.MessengerVerifyToken == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvMessengerVerifyToken, EnvMessengerPageToken))
	}
	if (c.LineChannelToken == "") != (c.LineChannelSecret == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", EnvLineChannelAccessToken, EnvLineChannelSecret))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvShutdownTimeout, c.ShutdownTimeout))
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSessionSweepInterval, c.SessionSweepInterval))
	}
	if c.SessionIdleTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSessionIdleTTL, c.SessionIdleTTL))
	}
	if c.SessionMaxEntries < 1 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvSessionMaxEntries, c.SessionMaxEntries))
	}
	if c.SubscriptionPeriod <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSubscriptionPeriod, c.SubscriptionPeriod))
	}
	if c.R2Enabled {
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("R2 requires account id, access key id, secret access key and bucket name"))
		}
		if c.R2PublicBaseURL == "" {
			errs = append(errs, fmt.Errorf("%s is required when R2 is enabled", EnvR2PublicBaseURL))
		}
	}
	if c.SentryEnabled && (c.SentryToken == "" || c.SentryHost == "") {
		errs = append(errs, fmt.Errorf("%s and %s are required when Sentry is enabled", EnvSentryToken, EnvSentryHost))
	}
	if c.BetterStackEnabled && (c.BetterStackToken == "" || c.BetterStackEndpoint == "") {
		errs = append(errs, fmt.Errorf("%s and %s are required when Better Stack is enabled", EnvBetterStackToken, EnvBetterStackEndpoint))
	}
	if c.MetricsAuthEnabled && c.MetricsPassword == "" {
		errs = append(errs, fmt.Errorf("%s is required when metrics auth is enabled", EnvMetricsPassword))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getListEnv retrieves a comma-separated list, dropping blank items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the subscription ledger database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "rtm.db")
}

// HasMessenger returns true if the Messenger channel is configured.
func (c *Config) HasMessenger() bool {
	return c.MessengerPageToken != "" && c.MessengerVerifyToken != ""
}

// HasLINE returns true if the LINE channel is configured.
func (c *Config) HasLINE() bool {
	return c.LineChannelToken != "" && c.LineChannelSecret != ""
}

// HasLLMProvider returns true if at least one LLM provider is configured.
func (c *Config) HasLLMProvider() bool {
	return c.GeminiAPIKey != "" || c.GroqAPIKey != "" || c.CerebrasAPIKey != "" || c.OpenAIAPIKey != ""
}
