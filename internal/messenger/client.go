package messenger

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rtm-bot/translator-go/internal/config"
	"github.com/rtm-bot/translator-go/internal/engine"
	"github.com/rtm-bot/translator-go/internal/fetch"
	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/metrics"
	"github.com/rtm-bot/translator-go/internal/ratelimit"
)

// defaultQuickReply is attached to every text sent without quick replies.
var defaultQuickReply = quickReply{ContentType: "text", Title: engine.MarkerSpeech, Payload: engine.PayloadSpeech}

// ClientConfig configures a Send API client.
type ClientConfig struct {
	PageToken  string
	GraphURL   string // "https://graph.facebook.com"
	APIVersion string // "v19.0"

	HTTP *fetch.Client
	// RateLimitRPS bounds outbound requests across all users.
	RateLimitRPS float64

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Client sends messages through the Messenger Send API. It implements
// engine.Deliverer and engine.Profiler.
type Client struct {
	http    *fetch.Client
	baseURL string
	token   string
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewClient creates a Send API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.GraphURL == "" {
		cfg.GraphURL = "https://graph.facebook.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = config.MessengerDefaultAPIVersion
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 200
	}
	if cfg.HTTP == nil {
		cfg.HTTP = fetch.NewClient(config.ExternalCall, 2, config.ExternalRetryInitial)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &Client{
		http:    cfg.HTTP,
		baseURL: strings.TrimSuffix(cfg.GraphURL, "/") + "/" + cfg.APIVersion,
		token:   cfg.PageToken,
		limiter: ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitRPS),
		metrics: cfg.Metrics,
		logger:  log.WithModule("messenger"),
	}
}

type sendRequest struct {
	Recipient     recipient  `json:"recipient"`
	MessagingType string     `json:"messaging_type"`
	Message       outMessage `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type outMessage struct {
	Text         string         `json:"text,omitempty"`
	QuickReplies []quickReply   `json:"quick_replies,omitempty"`
	Attachment   *outAttachment `json:"attachment,omitempty"`
}

type quickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

type outAttachment struct {
	Type    string            `json:"type"`
	Payload attachmentPayload `json:"payload"`
}

type attachmentPayload struct {
	URL        string `json:"url"`
	IsReusable bool   `json:"is_reusable"`
}

type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

// buildMessage converts an engine message to the Send API shape.
func buildMessage(msg engine.Message) outMessage {
	if msg.Attachment != nil {
		return outMessage{Attachment: &outAttachment{
			Type:    msg.Attachment.Type,
			Payload: attachmentPayload{URL: msg.Attachment.URL, IsReusable: true},
		}}
	}

	out := outMessage{Text: msg.Text}
	if len(msg.QuickReplies) == 0 {
		out.QuickReplies = []quickReply{defaultQuickReply}
		return out
	}
	for i, qr := range msg.QuickReplies {
		if i == config.MessengerMaxQuickReplies {
			break
		}
		out.QuickReplies = append(out.QuickReplies, quickReply{
			ContentType: "text",
			Title:       truncateRunes(qr.Title, config.MessengerMaxQuickReplyTitle),
			Payload:     qr.Payload,
		})
	}
	return out
}

// Deliver sends one message to psid.
func (c *Client) Deliver(ctx context.Context, psid string, msg engine.Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordRateLimiterDrop("global")
		return fmt.Errorf("messenger: rate limiter: %w", err)
	}

	req := sendRequest{
		Recipient:     recipient{ID: psid},
		MessagingType: "RESPONSE",
		Message:       buildMessage(msg),
	}

	start := time.Now()
	var resp sendResponse
	err := c.http.PostJSON(ctx, c.endpoint("me/messages", nil), req, &resp)
	c.record("send", err, start)
	if err != nil {
		return fmt.Errorf("messenger: send: %w", err)
	}
	c.logger.DebugContext(ctx, "Message sent", "message_id", resp.MessageID)
	return nil
}

type profileResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName returns the user's first name.
func (c *Client) DisplayName(ctx context.Context, psid string) (string, error) {
	start := time.Now()
	var p profileResponse
	err := c.http.GetJSON(ctx, c.endpoint(url.PathEscape(psid), url.Values{"fields": {"first_name,last_name"}}), &p)
	c.record("profile", err, start)
	if err != nil {
		return "", fmt.Errorf("messenger: profile: %w", err)
	}
	return p.FirstName, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("access_token", c.token)
	return c.baseURL + "/" + path + "?" + q.Encode()
}

func (c *Client) record(capability string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordExternalCall(capability, "messenger", status, time.Since(start).Seconds())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
