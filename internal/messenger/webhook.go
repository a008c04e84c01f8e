// Package messenger is the Facebook Messenger channel: the webhook that
// receives page events and the Send API client that delivers replies.
package messenger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rtm-bot/translator-go/internal/config"
	"github.com/rtm-bot/translator-go/internal/ctxutil"
	"github.com/rtm-bot/translator-go/internal/engine"
	"github.com/rtm-bot/translator-go/internal/logger"
	"github.com/rtm-bot/translator-go/internal/metrics"
)

const channelName = "messenger"

// Turner runs one conversation turn. *engine.Engine implements it.
type Turner interface {
	Handle(ctx context.Context, ev engine.Event, d engine.Deliverer) error
}

// HandlerConfig configures a webhook Handler.
type HandlerConfig struct {
	VerifyToken string
	AppSecret   string // Enables X-Hub-Signature-256 verification when set
	MaxEvents   int

	Engine    Turner
	Deliverer engine.Deliverer

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Handler serves the Messenger webhook.
type Handler struct {
	verifyToken string
	appSecret   []byte
	maxEvents   int
	engine      Turner
	deliverer   engine.Deliverer
	metrics     *metrics.Metrics
	logger      *logger.Logger
	wg          sync.WaitGroup
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.MaxEvents < 1 {
		cfg.MaxEvents = 100
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	h := &Handler{
		verifyToken: cfg.VerifyToken,
		maxEvents:   cfg.MaxEvents,
		engine:      cfg.Engine,
		deliverer:   cfg.Deliverer,
		metrics:     cfg.Metrics,
		logger:      log.WithModule("messenger"),
	}
	if cfg.AppSecret != "" {
		h.appSecret = []byte(cfg.AppSecret)
	}
	return h
}

type webhookBody struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []messagingEvent `json:"messaging"`
}

type messagingEvent struct {
	Sender    participant `json:"sender"`
	Timestamp int64       `json:"timestamp"`
	Message   *inMessage  `json:"message"`
	Postback  *inPostback `json:"postback"`
}

type participant struct {
	ID string `json:"id"`
}

type inMessage struct {
	MID        string `json:"mid"`
	Text       string `json:"text"`
	IsEcho     bool   `json:"is_echo"`
	QuickReply *struct {
		Payload string `json:"payload"`
	} `json:"quick_reply"`
	Attachments []struct {
		Type    string `json:"type"`
		Payload struct {
			URL string `json:"url"`
		} `json:"payload"`
	} `json:"attachments"`
}

type inPostback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Verify answers the webhook subscription challenge.
func (h *Handler) Verify(c *gin.Context) {
	if c.Query("hub.mode") == "subscribe" && h.verifyToken != "" &&
		hmac.Equal([]byte(c.Query("hub.verify_token")), []byte(h.verifyToken)) {
		h.logger.Info("Webhook verified")
		c.String(http.StatusOK, c.Query("hub.challenge"))
		return
	}
	h.logger.Warn("Webhook verification rejected")
	c.Status(http.StatusForbidden)
}

// Receive acknowledges a delivery at once and processes its events in the
// background. Events of one sender run in order; senders run concurrently.
func (h *Handler) Receive(c *gin.Context) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, config.MessengerMaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Webhook body too large")
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusBadRequest)
		return
	}

	if h.appSecret != nil && !h.validSignature(c.GetHeader("X-Hub-Signature-256"), body) {
		h.logger.Warn("Invalid webhook signature")
		h.metrics.RecordWebhook(channelName, "batch", "invalid_signature", time.Since(start).Seconds())
		c.Status(http.StatusBadRequest)
		return
	}

	var payload webhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.WithError(err).Warn("Malformed webhook body")
		c.Status(http.StatusBadRequest)
		return
	}
	if payload.Object != "page" {
		c.Status(http.StatusNotFound)
		return
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")
	h.metrics.RecordWebhook(channelName, "batch", "accepted", time.Since(start).Seconds())

	requestID, _ := ctxutil.GetRequestID(c.Request.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}
	for _, events := range h.groupBySender(payload) {
		h.wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.WithField("panic", r).Error("Panic in event processing")
				}
			}()
			ctx := ctxutil.WithRequestID(ctxutil.WithChannel(context.Background(), channelName), requestID)
			for _, ev := range events {
				h.process(ctx, ev)
			}
		})
	}
}

// groupBySender flattens the delivery into engine events grouped by sender,
// preserving delivery order within each sender.
func (h *Handler) groupBySender(payload webhookBody) map[string][]engine.Event {
	groups := make(map[string][]engine.Event)
	count := 0
	for _, e := range payload.Entry {
		for _, m := range e.Messaging {
			ev, ok := toEvent(m)
			if !ok {
				continue
			}
			if count == h.maxEvents {
				h.metrics.RecordEventDropped("batch_limit")
				continue
			}
			count++
			groups[ev.UserID] = append(groups[ev.UserID], ev)
		}
	}
	return groups
}

// toEvent converts one messaging entry. Echoes, deliveries and reads are skipped.
func toEvent(m messagingEvent) (engine.Event, bool) {
	ev := engine.Event{Channel: channelName, UserID: m.Sender.ID}
	switch {
	case m.Message != nil:
		if m.Message.IsEcho {
			return ev, false
		}
		ev.Text = m.Message.Text
		if m.Message.QuickReply != nil {
			ev.Payload = m.Message.QuickReply.Payload
		}
		if len(m.Message.Attachments) > 0 {
			a := m.Message.Attachments[0]
			ev.Attachment = &engine.Attachment{Type: a.Type, URL: a.Payload.URL}
		}
	case m.Postback != nil:
		ev.Payload = m.Postback.Payload
	default:
		return ev, false
	}
	return ev, true
}

func (h *Handler) process(ctx context.Context, ev engine.Event) {
	start := time.Now()
	kind := eventKind(ev)
	err := h.engine.Handle(ctx, ev, h.deliverer)
	status := "success"
	if err != nil {
		status = "error"
	}
	h.metrics.RecordWebhook(channelName, kind, status, time.Since(start).Seconds())
}

func eventKind(ev engine.Event) string {
	switch {
	case ev.Attachment != nil:
		return "attachment"
	case ev.Payload != "" && ev.Text == "":
		return "postback"
	case ev.Payload != "":
		return "quick_reply"
	default:
		return "message"
	}
}

// validSignature checks header "sha256=<hex>" against the body HMAC.
func (h *Handler) validSignature(header string, body []byte) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.appSecret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
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
