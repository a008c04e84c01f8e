package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		MessengerPageToken:   "page-token",
		MessengerVerifyToken: "verify",
		Port:                 "10000",
		DataDir:              "/data",
		ShutdownTimeout:      GracefulShutdown,
		SessionSweepInterval: SessionSweepInterval,
		SessionIdleTTL:       SessionIdleTTL,
		SessionMaxEntries:    100000,
		SubscriptionPeriod:   30 * 24 * time.Hour,
		Bot:                  DefaultBotConfig(),
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvMessengerPageToken, "page-token")
	t.Setenv(EnvMessengerVerifyToken, "verify")
	t.Setenv(EnvActivationCodes, " ALPHA, ,BETA ")
	t.Setenv(EnvCommandFailurePolicy, "RELEASE")
	t.Setenv(EnvChunkLimit, "640")
	t.Setenv(EnvSubscriptionRestore, "true")
	t.Setenv(EnvDefaultLanguage, "fr")
	t.Setenv(EnvDetectMinConfidence, "0.35")
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !cfg.HasMessenger() {
		t.Error("Expected Messenger channel to be configured")
	}
	if cfg.HasLINE() {
		t.Error("Expected LINE channel to be disabled")
	}
	if got := strings.Join(cfg.ActivationCodes, "|"); got != "ALPHA|BETA" {
		t.Errorf("ActivationCodes = %q, want ALPHA|BETA", got)
	}
	if cfg.Bot.CommandFailurePolicy != FailurePolicyRelease {
		t.Errorf("CommandFailurePolicy = %q, want release", cfg.Bot.CommandFailurePolicy)
	}
	if cfg.Bot.ChunkLimit != 640 {
		t.Errorf("ChunkLimit = %d, want 640", cfg.Bot.ChunkLimit)
	}
	if !cfg.SubscriptionRestore {
		t.Error("Expected SubscriptionRestore to be true")
	}
	if cfg.Bot.DefaultLanguage != "FR" {
		t.Errorf("DefaultLanguage = %q, want FR", cfg.Bot.DefaultLanguage)
	}
	if cfg.Bot.DetectMinConfidence != 0.35 {
		t.Errorf("DetectMinConfidence = %v, want 0.35", cfg.Bot.DetectMinConfidence)
	}

	// Defaults
	if cfg.Port != "10000" {
		t.Errorf("Expected default port '10000', got '%s'", cfg.Port)
	}
	if cfg.SubscriptionPeriod != 720*time.Hour {
		t.Errorf("Expected default subscription period 720h, got %v", cfg.SubscriptionPeriod)
	}
	if cfg.MessengerAPIVersion != MessengerDefaultAPIVersion {
		t.Errorf("Expected default API version %s, got %s", MessengerDefaultAPIVersion, cfg.MessengerAPIVersion)
	}
	if got := DefaultBotConfig().DetectMinConfidence; got != 0 {
		t.Errorf("Expected default detect min confidence 0, got %v", got)
	}
	if cfg.Bot.ExternalCallTimeout != ExternalCall {
		t.Errorf("Expected default external call timeout %v, got %v", ExternalCall, cfg.Bot.ExternalCallTimeout)
	}
}

func TestLoad_NoChannel(t *testing.T) {
	t.Setenv(EnvMessengerPageToken, "")
	t.Setenv(EnvLineChannelAccessToken, "")
	t.Setenv(EnvDataDir, t.TempDir())

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error when no channel is configured")
	}
	if !strings.Contains(err.Error(), "at least one channel") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid messenger config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name: "valid LINE-only config",
			mutate: func(c *Config) {
				c.MessengerPageToken = ""
				c.MessengerVerifyToken = ""
				c.LineChannelToken = "token"
				c.LineChannelSecret = "secret"
			},
			wantErr: false,
		},
		{
			name: "page token without verify token",
			mutate: func(c *Config) {
				c.MessengerVerifyToken = ""
				c.LineChannelToken = "token"
				c.LineChannelSecret = "secret"
			},
			wantErr:     true,
			errContains: EnvMessengerVerifyToken,
		},
		{
			name: "LINE token without secret",
			mutate: func(c *Config) {
				c.LineChannelToken = "token"
			},
			wantErr:     true,
			errContains: EnvLineChannelSecret,
		},
		{
			name: "R2 enabled without bucket",
			mutate: func(c *Config) {
				c.R2Enabled = true
				c.R2AccountID = "acc"
				c.R2AccessKeyID = "key"
				c.R2SecretAccessKey = "secret"
				c.R2PublicBaseURL = "https://media.example.com"
			},
			wantErr:     true,
			errContains: "bucket name",
		},
		{
			name: "metrics auth without password",
			mutate: func(c *Config) {
				c.MetricsAuthEnabled = true
			},
			wantErr:     true,
			errContains: EnvMetricsPassword,
		},
		{
			name: "zero subscription period",
			mutate: func(c *Config) {
				c.SubscriptionPeriod = 0
			},
			wantErr:     true,
			errContains: EnvSubscriptionPeriod,
		},
		{
			name: "invalid failure policy",
			mutate: func(c *Config) {
				c.Bot.CommandFailurePolicy = "retry"
			},
			wantErr:     true,
			errContains: "command failure policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = ""
	cfg.SessionMaxEntries = 0
	cfg.Bot.ChunkLimit = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{EnvPort, EnvSessionMaxEntries, "chunk limit"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestBotConfigValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultBotConfig().Validate(); err != nil {
		t.Fatalf("default bot config should be valid: %v", err)
	}

	cfg := DefaultBotConfig()
	cfg.ExternalCallTimeout = 2 * cfg.WebhookTimeout
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when external call timeout exceeds webhook timeout")
	}

	cfg = DefaultBotConfig()
	cfg.DetectMinConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for confidence above 1")
	}
}

func TestGetListEnv(t *testing.T) {
	t.Setenv("RTM_TEST_LIST", "a, b,,c ")
	got := getListEnv("RTM_TEST_LIST", nil)
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("getListEnv() = %v", got)
	}

	t.Setenv("RTM_TEST_LIST", " , ")
	if got := getListEnv("RTM_TEST_LIST", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("expected default for blank list, got %v", got)
	}
}

func TestSQLitePath(t *testing.T) {
	t.Parallel()
	cfg := &Config{DataDir: "/data"}
	if got := cfg.SQLitePath(); !strings.HasSuffix(got, "rtm.db") {
		t.Errorf("SQLitePath() = %s", got)
	}
}
