package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiGenerator generates text with one Gemini model.
type geminiGenerator struct {
	client *genai.Client
	model  string
}

// newGeminiGenerator creates a Gemini generator. baseURL overrides the API
// endpoint (tests); empty uses the SDK default.
func newGeminiGenerator(ctx context.Context, apiKey, model, baseURL string) (*geminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiGenerator{client: client, model: model}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	contents := genai.Text(req.Prompt)
	if req.Image != nil {
		if len(req.Image.Data) == 0 {
			return "", WrapError(errors.New("gemini: unsupported image without inline data"), ProviderGemini, 0)
		}
		parts := []*genai.Part{
			genai.NewPartFromBytes(req.Image.Data, imageMIME(req.Image)),
			genai.NewPartFromText(req.Prompt),
		}
		contents = []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", WrapError(fmt.Errorf("generate content: %w", err), ProviderGemini, 0)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", WrapError(errors.New("gemini: empty response (blocked)"), ProviderGemini, 0)
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", WrapError(errors.New("gemini: empty response (blocked)"), ProviderGemini, 0)
	}

	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "Generation completed",
			"provider", ProviderGemini,
			"model", g.model,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return text, nil
}

func (g *geminiGenerator) Provider() Provider { return ProviderGemini }

func (g *geminiGenerator) Model() string { return g.model }

func imageMIME(img *Image) string {
	if img.MIMEType != "" {
		return img.MIMEType
	}
	return "image/jpeg"
}
