// Package media synthesizes speech and generates images with the OpenAI
// audio and image endpoints, and publishes the results through object
// storage so messaging platforms can fetch them by URL.
package media

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Store is the object storage used to publish generated media.
// *r2client.Client implements it.
type Store interface {
	Key(parts ...string) string
	NewKey(dir, ext string) string
	PublicURL(key string) string
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// newClient returns nil when apiKey is empty. baseURL overrides the API
// endpoint for OpenAI-compatible servers and tests.
func newClient(apiKey, baseURL string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
