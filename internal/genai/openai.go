package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiGenerator generates text with one model of an OpenAI-compatible
// provider (Groq, Cerebras, OpenAI).
type openaiGenerator struct {
	client   openai.Client
	model    string
	provider Provider
}

// newOpenAIGenerator creates a generator. baseURL overrides the provider
// endpoint (tests); empty uses ProviderEndpoint.
func newOpenAIGenerator(provider Provider, apiKey, model, baseURL string) (*openaiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is empty", provider)
	}
	if baseURL == "" {
		var ok bool
		if baseURL, ok = ProviderEndpoint[provider]; !ok {
			return nil, fmt.Errorf("unsupported OpenAI-compatible provider: %s", provider)
		}
	}
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // retries are handled by the chain
	)
	return &openaiGenerator{client: client, model: model, provider: provider}, nil
}

func (g *openaiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	if req.Image != nil {
		url := req.Image.URL
		if len(req.Image.Data) > 0 {
			url = "data:" + imageMIME(req.Image) + ";base64," + base64.StdEncoding.EncodeToString(req.Image.Data)
		}
		if url == "" {
			return "", WrapError(errors.New("unsupported image without data or url"), g.provider, 0)
		}
		messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
		}))
	} else {
		messages = append(messages, openai.UserMessage(req.Prompt))
	}

	params := openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", WrapError(fmt.Errorf("chat completion: %w", err), g.provider, 0)
	}
	if len(resp.Choices) == 0 {
		return "", WrapError(errors.New("empty response (blocked)"), g.provider, 0)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", WrapError(errors.New("empty response (blocked)"), g.provider, 0)
	}

	slog.DebugContext(ctx, "Generation completed",
		"provider", g.provider,
		"model", g.model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

func (g *openaiGenerator) Provider() Provider { return g.provider }

func (g *openaiGenerator) Model() string { return g.model }
