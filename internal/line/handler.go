// Package line is the LINE channel. It converts webhook events to engine
// events and delivers each turn's replies as one reply plus pushes.
package line

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/rtm-bot/translator-go/internal/ctxutil"
	"github.com/rtm-bot/translator-go/internal/engine"
	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/metrics"
	"github.com/rtm-bot/translator-go/internal/ratelimit"
)

const channelName = "line"

// maxBodyBytes caps the webhook request body.
const maxBodyBytes = 1 << 20

// maxImageBytes caps an image copied from LINE to object storage.
const maxImageBytes = 10 << 20

// Turner runs one conversation turn. *engine.Engine implements it.
type Turner interface {
	Handle(ctx context.Context, ev engine.Event, d engine.Deliverer) error
}

// ImageStore rehosts received images. *r2client.Client implements it.
type ImageStore interface {
	NewKey(dir, ext string) string
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	ChannelSecret string
	API           API
	Engine        Turner
	// Images is optional; without it received images are reported unsupported.
	Images    ImageStore
	MaxEvents int
	// RateLimitRPS bounds outbound API calls across all users.
	RateLimitRPS float64

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Handler serves the LINE webhook.
type Handler struct {
	channelSecret string
	api           API
	engine        Turner
	images        ImageStore
	maxEvents     int
	limiter       *ratelimit.Limiter
	metrics       *metrics.Metrics
	logger        *logger.Logger
	wg            sync.WaitGroup
}

// NewHandler creates a LINE webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.MaxEvents < 1 {
		cfg.MaxEvents = 100
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &Handler{
		channelSecret: cfg.ChannelSecret,
		api:           cfg.API,
		engine:        cfg.Engine,
		images:        cfg.Images,
		maxEvents:     cfg.MaxEvents,
		limiter:       ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitRPS),
		metrics:       cfg.Metrics,
		logger:        log.WithModule("line"),
	}
}

// inbound is one event ready for the engine.
type inbound struct {
	event      engine.Event
	replyToken string
	imageID    string
	eventID    string
}

// Handle is the gin handler for the webhook endpoint.
func (h *Handler) Handle(c *gin.Context) {
	start := time.Now()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.logger.Warn("Webhook body too large")
			c.Status(http.StatusRequestEntityTooLarge)
		case errors.Is(err, webhook.ErrInvalidSignature):
			h.logger.Warn("Invalid webhook signature")
			h.metrics.RecordWebhook(channelName, "batch", "invalid_signature", time.Since(start).Seconds())
			c.Status(http.StatusBadRequest)
		default:
			h.logger.WithError(err).Error("Failed to parse webhook request")
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Status(http.StatusOK)
	h.metrics.RecordWebhook(channelName, "batch", "accepted", time.Since(start).Seconds())

	events := cb.Events
	if len(events) > h.maxEvents {
		h.logger.WithField("event_count", len(events)).Warn("Too many events in webhook batch; truncating")
		h.metrics.RecordEventDropped("batch_limit")
		events = events[:h.maxEvents]
	}

	groups := make(map[string][]inbound)
	for _, raw := range events {
		in, ok := toInbound(raw)
		if !ok {
			continue
		}
		groups[in.event.UserID] = append(groups[in.event.UserID], in)
	}

	for _, group := range groups {
		h.wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.WithField("panic", r).Error("Panic in event processing")
				}
			}()
			for _, in := range group {
				h.process(in)
			}
		})
	}
}

// toInbound converts a webhook event. Only one-to-one chats are served.
func toInbound(raw webhook.EventInterface) (inbound, bool) {
	in := inbound{event: engine.Event{Channel: channelName}}

	var source webhook.SourceInterface
	switch e := raw.(type) {
	case webhook.MessageEvent:
		source, in.replyToken, in.eventID = e.Source, e.ReplyToken, e.WebhookEventId
		switch m := e.Message.(type) {
		case webhook.TextMessageContent:
			in.event.Text = m.Text
		case webhook.ImageMessageContent:
			in.imageID = m.Id
			in.event.Attachment = &engine.Attachment{Type: engine.AttachmentImage}
		default:
			in.event.Attachment = &engine.Attachment{Type: m.GetType()}
		}
	case webhook.PostbackEvent:
		source, in.replyToken, in.eventID = e.Source, e.ReplyToken, e.WebhookEventId
		if e.Postback != nil {
			in.event.Payload = e.Postback.Data
		}
	case webhook.FollowEvent:
		source, in.replyToken, in.eventID = e.Source, e.ReplyToken, e.WebhookEventId
		in.event.Payload = engine.PayloadGetStarted
	default:
		return in, false
	}

	user, ok := source.(webhook.UserSource)
	if !ok {
		return in, false
	}
	in.event.UserID = user.UserId
	return in, true
}

func (h *Handler) process(in inbound) {
	start := time.Now()
	ctx := ctxutil.WithChannel(context.Background(), channelName)
	if in.eventID != "" {
		ctx = ctxutil.WithRequestID(ctx, in.eventID)
	}
	ctx = ctxutil.WithUserID(ctx, in.event.UserID)
	log := h.logger.WithField("event_id", in.eventID)

	if err := h.api.ShowLoading(in.event.UserID); err != nil {
		log.WithError(err).Debug("Failed to show loading animation")
	}

	if in.imageID != "" {
		in.event.Attachment.URL = h.rehostImage(ctx, in.imageID)
	}

	out := &batch{api: h.api, replyToken: in.replyToken}
	status := "success"
	if err := h.engine.Handle(ctx, in.event, out); err != nil {
		status = "error"
	}

	if len(out.msgs) > 0 {
		if err := h.limiter.Wait(ctx); err != nil {
			h.metrics.RecordRateLimiterDrop("global")
		}
		sent, err := out.flush(in.event.UserID)
		if err != nil {
			status = "reply_error"
			h.metrics.RecordDeliveryError(channelName)
			log.WithError(err).WarnContext(ctx, "Failed to deliver replies")
		}
		for range sent {
			h.metrics.RecordDelivery(channelName, "message")
		}
	}
	h.metrics.RecordWebhook(channelName, eventKind(in), status, time.Since(start).Seconds())
}

// rehostImage copies the image to object storage and returns its public URL,
// or "" when it cannot.
func (h *Handler) rehostImage(ctx context.Context, messageID string) string {
	if h.images == nil {
		return ""
	}
	body, contentType, err := h.api.Content(messageID)
	if err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to fetch image content")
		return ""
	}
	defer func() { _ = body.Close() }()

	ext := ".jpg"
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		ext = exts[0]
	}
	url, err := h.images.Upload(ctx, h.images.NewKey("line", ext), io.LimitReader(body, maxImageBytes), contentType)
	if err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to store image")
		return ""
	}
	return url
}

func eventKind(in inbound) string {
	switch {
	case in.event.Payload == engine.PayloadGetStarted:
		return "follow"
	case in.event.Payload != "":
		return "postback"
	case in.event.Attachment != nil:
		return "attachment"
	default:
		return "message"
	}
}

// Shutdown waits for in-flight turns or for ctx to end.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
