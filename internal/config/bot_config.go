package config

import (
	"errors"
	"fmt"
	"time"
)

// Command failure policies.
const (
	// FailurePolicyKeep keeps the command lock after a failure unless the
	// command marked the error as not retry-safe.
	FailurePolicyKeep = "keep"
	// FailurePolicyRelease always clears the command lock after a failure.
	FailurePolicyRelease = "release"
)

// BotConfig holds conversation engine settings.
type BotConfig struct {
	// Timeouts
	WebhookTimeout      time.Duration // Deadline for one turn (see config/timeouts.go)
	ExternalCallTimeout time.Duration // Deadline for one external call

	// Replies
	ChunkLimit           int    // Maximum runes per outbound text segment
	CommandFailurePolicy string // "keep" or "release"
	MaxEventsPerWebhook  int    // Events beyond this in one delivery are dropped

	// Language
	DefaultLanguage     string  // Named fallback when detection is unusable
	DetectMinConfidence float64 // Detection results below this use DefaultLanguage; 0 keeps the top guess

	// Rate Limits
	GlobalRateLimitRPS float64 // Outbound Send API requests per second
	LLMBurstTokens     float64 // Maximum burst tokens for LLM per user
	LLMRefillPerHour   float64 // LLM tokens refilled per hour
	LLMDailyLimit      int     // Maximum LLM requests per user per day (0 = disabled)
}

// DefaultBotConfig returns default conversation settings.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		WebhookTimeout:       WebhookProcessing,
		ExternalCallTimeout:  ExternalCall,
		ChunkLimit:           MessengerMaxTextLength,
		CommandFailurePolicy: FailurePolicyKeep,
		MaxEventsPerWebhook:  100,
		DefaultLanguage:      "EN",
		DetectMinConfidence:  0,
		GlobalRateLimitRPS:   200.0, // Graph API allows far more; protects downstream quotas
		LLMBurstTokens:       20.0,
		LLMRefillPerHour:     10.0,
		LLMDailyLimit:        60,
	}
}

// Validate checks if the configuration is valid.
func (c BotConfig) Validate() error {
	var errs []error

	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("webhook timeout must be positive, got %v", c.WebhookTimeout))
	}
	if c.ExternalCallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("external call timeout must be positive, got %v", c.ExternalCallTimeout))
	}
	if c.ExternalCallTimeout > c.WebhookTimeout {
		errs = append(errs, fmt.Errorf("external call timeout %v exceeds webhook timeout %v", c.ExternalCallTimeout, c.WebhookTimeout))
	}
	if c.ChunkLimit < 1 {
		errs = append(errs, fmt.Errorf("chunk limit must be positive, got %d", c.ChunkLimit))
	}
	if c.CommandFailurePolicy != FailurePolicyKeep && c.CommandFailurePolicy != FailurePolicyRelease {
		errs = append(errs, fmt.Errorf("command failure policy must be %q or %q, got %q",
			FailurePolicyKeep, FailurePolicyRelease, c.CommandFailurePolicy))
	}
	if c.MaxEventsPerWebhook < 1 {
		errs = append(errs, fmt.Errorf("max events per webhook must be positive, got %d", c.MaxEventsPerWebhook))
	}
	if c.DefaultLanguage == "" {
		errs = append(errs, errors.New("default language is required"))
	}
	if c.DetectMinConfidence < 0 || c.DetectMinConfidence > 1 {
		errs = append(errs, fmt.Errorf("detect min confidence must be within [0, 1], got %f", c.DetectMinConfidence))
	}
	if c.GlobalRateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("global rate limit RPS must be positive, got %f", c.GlobalRateLimitRPS))
	}
	if c.LLMBurstTokens <= 0 {
		errs = append(errs, fmt.Errorf("LLM burst tokens must be positive, got %f", c.LLMBurstTokens))
	}
	if c.LLMRefillPerHour <= 0 {
		errs = append(errs, fmt.Errorf("LLM refill per hour must be positive, got %f", c.LLMRefillPerHour))
	}
	if c.LLMDailyLimit < 0 {
		errs = append(errs, fmt.Errorf("LLM daily limit cannot be negative, got %d", c.LLMDailyLimit))
	}

	return errors.Join(errs...)
}
