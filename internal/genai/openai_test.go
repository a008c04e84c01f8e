package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCompletionServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "llama-3.3-70b-versatile",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	t.Parallel()
	var seen map[string]any
	srv := chatCompletionServer(t, http.StatusOK, "  Hello world \n", &seen)

	g, err := newOpenAIGenerator(ProviderGroq, "test-key", "llama-3.3-70b-versatile", srv.URL+"/")
	require.NoError(t, err)

	got, err := g.Generate(context.Background(), Request{System: "sys", Prompt: "Bonjour", MaxTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)
	assert.Equal(t, "llama-3.3-70b-versatile", seen["model"])

	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIGenerator_ImageAsDataURL(t *testing.T) {
	t.Parallel()
	var seen map[string]any
	srv := chatCompletionServer(t, http.StatusOK, "Un chat", &seen)

	g, err := newOpenAIGenerator(ProviderOpenAI, "test-key", "gpt-4o-mini", srv.URL+"/")
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), Request{
		Prompt: "Décris",
		Image:  &Image{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"},
	})
	require.NoError(t, err)

	raw, _ := json.Marshal(seen["messages"])
	assert.Contains(t, string(raw), "data:image/jpeg;base64,/9g=")
}

func TestOpenAIGenerator_StatusErrorIsClassified(t *testing.T) {
	t.Parallel()
	srv := chatCompletionServer(t, http.StatusTooManyRequests, "", nil)

	g, err := newOpenAIGenerator(ProviderCerebras, "test-key", "llama-3.3-70b", srv.URL+"/")
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)

	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, http.StatusTooManyRequests, llmErr.StatusCode)
	assert.Equal(t, ActionRetry, ClassifyError(err))
}

func TestNewOpenAIGenerator_Validation(t *testing.T) {
	t.Parallel()
	_, err := newOpenAIGenerator(ProviderGroq, "", "m", "")
	assert.Error(t, err)
	_, err = newOpenAIGenerator(ProviderGemini, "k", "m", "")
	assert.Error(t, err, "gemini is not OpenAI-compatible")
}

func TestGeminiGenerator_RequiresInlineImage(t *testing.T) {
	t.Parallel()
	g, err := newGeminiGenerator(context.Background(), "test-key", "gemini-2.5-flash", "")
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), Request{Prompt: "x", Image: &Image{URL: "https://x/y.jpg"}})
	require.Error(t, err)
	assert.Equal(t, ActionFallback, ClassifyError(err))
	assert.Equal(t, ProviderGemini, g.Provider())
}
