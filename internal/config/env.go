// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Messenger channel
	EnvMessengerPageToken   = "RTM_MESSENGER_PAGE_ACCESS_TOKEN"
	EnvMessengerVerifyToken = "RTM_MESSENGER_VERIFY_TOKEN"
	EnvMessengerAppSecret   = "RTM_MESSENGER_APP_SECRET"
	EnvMessengerAPIVersion  = "RTM_MESSENGER_API_VERSION"
	EnvMessengerGraphURL    = "RTM_MESSENGER_GRAPH_URL"

	// LINE channel
	EnvLineChannelAccessToken = "RTM_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "RTM_LINE_CHANNEL_SECRET"

	// Server
	EnvPort            = "RTM_PORT"
	EnvLogLevel        = "RTM_LOG_LEVEL"
	EnvShutdownTimeout = "RTM_SHUTDOWN_TIMEOUT"
	EnvServerName      = "RTM_SERVER_NAME"
	EnvInstanceID      = "RTM_INSTANCE_ID"

	// Data
	EnvDataDir = "RTM_DATA_DIR"

	// Conversation
	EnvWebhookTimeout       = "RTM_WEBHOOK_TIMEOUT"
	EnvExternalCallTimeout  = "RTM_EXTERNAL_CALL_TIMEOUT"
	EnvChunkLimit           = "RTM_CHUNK_LIMIT"
	EnvCommandFailurePolicy = "RTM_COMMAND_FAILURE_POLICY"
	EnvDefaultLanguage      = "RTM_DEFAULT_LANGUAGE"
	EnvDetectMinConfidence  = "RTM_DETECT_MIN_CONFIDENCE"

	// Session store
	EnvSessionSweepInterval = "RTM_SESSION_SWEEP_INTERVAL"
	EnvSessionIdleTTL       = "RTM_SESSION_IDLE_TTL"
	EnvSessionMaxEntries    = "RTM_SESSION_MAX_ENTRIES"

	// Subscription
	EnvActivationCodes     = "RTM_ACTIVATION_CODES"
	EnvSubscriptionPeriod  = "RTM_SUBSCRIPTION_PERIOD"
	EnvSubscriptionRestore = "RTM_SUBSCRIPTION_RESTORE"

	// Rate Limits
	EnvGlobalRateRPS = "RTM_GLOBAL_RATE_RPS"
	EnvLLMRateBurst  = "RTM_LLM_RATE_BURST"
	EnvLLMRateRefill = "RTM_LLM_RATE_REFILL"
	EnvLLMRateDaily  = "RTM_LLM_RATE_DAILY"

	// Translation
	EnvMyMemoryURL   = "RTM_MYMEMORY_URL"
	EnvMyMemoryEmail = "RTM_MYMEMORY_EMAIL"

	// LLM Feature
	EnvLLMProviders         = "RTM_LLM_PROVIDERS"
	EnvGeminiAPIKey         = "RTM_GEMINI_API_KEY"
	EnvGroqAPIKey           = "RTM_GROQ_API_KEY"
	EnvCerebrasAPIKey       = "RTM_CEREBRAS_API_KEY"
	EnvOpenAIAPIKey         = "RTM_OPENAI_API_KEY"
	EnvGeminiTextModels     = "RTM_GEMINI_TEXT_MODELS"
	EnvGeminiVisionModels   = "RTM_GEMINI_VISION_MODELS"
	EnvGroqTextModels       = "RTM_GROQ_TEXT_MODELS"
	EnvGroqVisionModels     = "RTM_GROQ_VISION_MODELS"
	EnvCerebrasTextModels   = "RTM_CEREBRAS_TEXT_MODELS"
	EnvOpenAITextModels     = "RTM_OPENAI_TEXT_MODELS"
	EnvOpenAIVisionModels   = "RTM_OPENAI_VISION_MODELS"
	EnvLLMTranslateFallback = "RTM_LLM_TRANSLATE_FALLBACK"

	// Media Feature (speech + image generation)
	EnvTTSModel       = "RTM_TTS_MODEL"
	EnvTTSVoice       = "RTM_TTS_VOICE"
	EnvImageModel     = "RTM_IMAGE_MODEL"
	EnvImageSize      = "RTM_IMAGE_SIZE"
	EnvSpeechFallback = "RTM_SPEECH_FALLBACK_URL"

	// R2 Media Storage Feature
	EnvR2Enabled         = "RTM_R2_ENABLED"
	EnvR2AccountID       = "RTM_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "RTM_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "RTM_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "RTM_R2_BUCKET_NAME"
	EnvR2PublicBaseURL   = "RTM_R2_PUBLIC_BASE_URL"
	EnvR2MediaPrefix     = "RTM_R2_MEDIA_PREFIX"

	// Sentry Feature
	EnvSentryEnabled     = "RTM_SENTRY_ENABLED"
	EnvSentryToken       = "RTM_SENTRY_TOKEN"
	EnvSentryHost        = "RTM_SENTRY_HOST"
	EnvSentryEnvironment = "RTM_SENTRY_ENVIRONMENT"
	EnvSentryRelease     = "RTM_SENTRY_RELEASE"
	EnvSentrySampleRate  = "RTM_SENTRY_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackEnabled  = "RTM_BETTERSTACK_ENABLED"
	EnvBetterStackToken    = "RTM_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "RTM_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "RTM_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "RTM_METRICS_USERNAME"
	EnvMetricsPassword    = "RTM_METRICS_PASSWORD"
)
