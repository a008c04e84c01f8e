package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domerrors "github.com/rtm-bot/translator-go/internal/errors"
	"github.com/rtm-bot/translator-go/internal/fetch"
	"github.com/rtm-bot/translator-go/internal/language"
)

// DefaultMyMemoryURL is the public MyMemory endpoint.
const DefaultMyMemoryURL = "https://api.mymemory.translated.net/get"

// myMemoryMaxBytes is the largest query MyMemory accepts.
const myMemoryMaxBytes = 500

// ErrTextTooLong is returned for texts above the MyMemory query limit.
var ErrTextTooLong = errors.New("mymemory: text exceeds query limit")

// MyMemory translates through the MyMemory translation memory API.
type MyMemory struct {
	client  *fetch.Client
	baseURL string
	email   string
}

// NewMyMemory creates a client. email, when set, is sent as "de" and raises
// the anonymous daily quota.
func NewMyMemory(client *fetch.Client, baseURL, email string) *MyMemory {
	if baseURL == "" {
		baseURL = DefaultMyMemoryURL
	}
	return &MyMemory{client: client, baseURL: baseURL, email: email}
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	// responseStatus is a number on success and sometimes a quoted string on errors.
	ResponseStatus  json.Number `json:"responseStatus"`
	ResponseDetails string      `json:"responseDetails"`
}

// Name identifies the translator in metrics.
func (m *MyMemory) Name() string { return "mymemory" }

// Translate translates text from src to dst.
func (m *MyMemory) Translate(ctx context.Context, text string, src, dst language.Code) (string, error) {
	if len(text) > myMemoryMaxBytes {
		return "", ErrTextTooLong
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", src.ISO6391()+"|"+dst.ISO6391())
	if m.email != "" {
		q.Set("de", m.email)
	}

	var resp myMemoryResponse
	if err := m.client.GetJSON(ctx, m.baseURL+"?"+q.Encode(), &resp); err != nil {
		return "", fmt.Errorf("mymemory: %w", err)
	}

	if status := resp.ResponseStatus.String(); status != "" && status != "200" {
		code, _ := strconv.Atoi(status)
		return "", domerrors.NewAPIError("mymemory", code, errors.New(resp.ResponseDetails))
	}
	translated := strings.TrimSpace(html.UnescapeString(resp.ResponseData.TranslatedText))
	if translated == "" {
		return "", errors.New("mymemory: empty translation")
	}
	if strings.HasPrefix(strings.ToUpper(translated), "MYMEMORY WARNING") {
		return "", domerrors.NewAPIError("mymemory", http.StatusTooManyRequests, errors.New(translated))
	}
	return translated, nil
}
