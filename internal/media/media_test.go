package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/rtm-bot/translator-go/internal/errors"
	"github.com/rtm-bot/translator-go/internal/fetch"
	"github.com/rtm-bot/translator-go/internal/language"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Key(parts ...string) string   { return "media/" + strings.Join(parts, "/") }
func (m *memoryStore) NewKey(dir, ext string) string { return "media/" + dir + "/generated" + ext }
func (m *memoryStore) PublicURL(key string) string  { return "https://cdn.example/" + key }

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	if m.failPut {
		return "", errors.New("bucket unavailable")
	}
	data, _ := io.ReadAll(body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return m.PublicURL(key), nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

const testFallback = "https://tts.example/speak?q=%s&tl=%s"

func speechServer(t *testing.T, calls *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		calls.Add(1)
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "tts-1", req["model"])
		assert.Equal(t, "alloy", req["voice"])
		time.Sleep(20 * time.Millisecond)
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"down"}}`))
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-" + req["input"].(string)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSpeech_SynthesizesAndCaches(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := speechServer(t, &calls, http.StatusOK)
	store := newMemoryStore()
	s := NewSpeech(SpeechConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Store: store})

	u, err := s.URL(context.Background(), "Hello world", language.EN)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://cdn.example/media/speech/"))
	assert.True(t, strings.HasSuffix(u, ".mp3"))

	again, err := s.URL(context.Background(), "Hello world", language.EN)
	require.NoError(t, err)
	assert.Equal(t, u, again)
	assert.Equal(t, int32(1), calls.Load(), "stored clip is reused")

	other, err := s.URL(context.Background(), "Hello world", language.FR)
	require.NoError(t, err)
	assert.NotEqual(t, u, other, "language is part of the key")
}

func TestSpeech_ConcurrentRequestsShareSynthesis(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := speechServer(t, &calls, http.StatusOK)
	s := NewSpeech(SpeechConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Store: newMemoryStore()})

	var wg sync.WaitGroup
	urls := make([]string, 8)
	for i := range urls {
		wg.Go(func() {
			urls[i], _ = s.URL(context.Background(), "Buenos días", language.ES)
		})
	}
	wg.Wait()

	for _, u := range urls {
		assert.Equal(t, urls[0], u)
	}
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestSpeech_FallsBackOnFailure(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := speechServer(t, &calls, http.StatusInternalServerError)
	s := NewSpeech(SpeechConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Store: newMemoryStore(), FallbackTemplate: testFallback})

	u, err := s.URL(context.Background(), "Hello world", language.EN)
	require.NoError(t, err)
	assert.Equal(t, "https://tts.example/speak?q=Hello+world&tl=en", u)
}

func TestSpeech_WithoutProvider(t *testing.T) {
	t.Parallel()

	s := NewSpeech(SpeechConfig{FallbackTemplate: testFallback})
	assert.True(t, s.Enabled())
	u, err := s.URL(context.Background(), strings.Repeat("a", 300), language.MG)
	require.NoError(t, err)
	assert.Contains(t, u, "tl=mg")
	assert.Contains(t, u, "q="+strings.Repeat("a", maxFallbackRunes)+"&")

	none := NewSpeech(SpeechConfig{APIKey: "k"}) // no store
	assert.False(t, none.Enabled())
	_, err = none.URL(context.Background(), "x", language.EN)
	assert.ErrorIs(t, err, domerrors.ErrNotConfigured)

	_, err = s.URL(context.Background(), "", language.EN)
	assert.ErrorIs(t, err, domerrors.ErrInvalidInput)
}

// imageServer serves the generations endpoint and one downloadable image.
// A relative imageURL is resolved against the server.
func imageServer(t *testing.T, imageURL string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/images/generations":
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, "dall-e-3", req["model"])
			assert.Equal(t, "url", req["response_format"])
			u := imageURL
			if strings.HasPrefix(u, "/") {
				u = srv.URL + u
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"created": 1,
				"data":    []any{map[string]any{"url": u}},
			})
		case "/files/img.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImages_Generate(t *testing.T) {
	t.Parallel()
	srv := imageServer(t, "/files/img.png")
	store := newMemoryStore()
	g := NewImages(ImagesConfig{
		APIKey:  "k",
		BaseURL: srv.URL + "/v1",
		Store:   store,
		HTTP:    fetch.NewClient(5*time.Second, 0, 0),
	})

	u, err := g.Generate(context.Background(), "un chat astronaute")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/media/images/generated.png", u)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.True(t, bytes.HasPrefix(store.objects["media/images/generated.png"], []byte("\x89PNG")))
}

func TestImages_KeepsProviderURLWhenStoreFails(t *testing.T) {
	t.Parallel()
	srv := imageServer(t, "/files/img.png")
	store := newMemoryStore()
	store.failPut = true
	g := NewImages(ImagesConfig{
		APIKey:  "k",
		BaseURL: srv.URL + "/v1",
		Store:   store,
		HTTP:    fetch.NewClient(5*time.Second, 0, 0),
	})

	u, err := g.Generate(context.Background(), "un phare au coucher du soleil")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/files/img.png", u)
}

func TestImages_Disabled(t *testing.T) {
	t.Parallel()
	g := NewImages(ImagesConfig{})
	assert.False(t, g.Enabled())
	_, err := g.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, domerrors.ErrNotConfigured)
}
