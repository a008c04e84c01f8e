package r2client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket is a minimal path-style S3 endpoint supporting PUT and HEAD.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[r.URL.Path] = data
		b.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if _, ok := b.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		Endpoint:      srv.URL,
		AccessKeyID:   "key",
		SecretKey:     "secret",
		BucketName:    "rtm",
		PublicBaseURL: "https://media.example.com/",
		Prefix:        "/media/",
	})
	require.NoError(t, err)
	return c, bucket
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{BucketName: "b"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{AccountID: "acc", AccessKeyID: "k", SecretKey: "s", BucketName: "b"})
	assert.Error(t, err, "public base url is required")

	c, err := New(context.Background(), Config{AccountID: "acc", AccessKeyID: "k", SecretKey: "s", BucketName: "b", PublicBaseURL: "https://pub.r2.dev"})
	require.NoError(t, err)
	assert.Equal(t, "https://pub.r2.dev/x.mp3", c.PublicURL("x.mp3"))
}

func TestKeys(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	assert.Equal(t, "media/speech/abc.mp3", c.Key("speech", "abc.mp3"))
	key := c.NewKey("images", ".png")
	assert.True(t, strings.HasPrefix(key, "media/images/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotEqual(t, key, c.NewKey("images", ".png"))
}

func TestUploadAndExists(t *testing.T) {
	t.Parallel()
	c, bucket := newTestClient(t)
	ctx := context.Background()
	key := c.Key("speech", "hello.mp3")

	exists, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	url, err := c.Upload(ctx, key, bytes.NewReader([]byte("ID3audio")), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/media/speech/hello.mp3", url)

	bucket.mu.Lock()
	assert.Equal(t, []byte("ID3audio"), bucket.objects["/rtm/media/speech/hello.mp3"])
	assert.Equal(t, "audio/mpeg", bucket.types["/rtm/media/speech/hello.mp3"])
	bucket.mu.Unlock()

	exists, err = c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}
