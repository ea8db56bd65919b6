package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"plantshop/internal/events"
	"plantshop/internal/logger"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Lightspeed-Signature"

// maxWebhookBody caps the payload read before the signature is checked.
const maxWebhookBody = 1 << 20

// EventDispatcher applies a webhook event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, e events.Event) error
}

// EventPublisher queues a webhook event for the worker.
type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type WebhookHandler struct {
	secret     string
	dispatcher EventDispatcher
	publisher  EventPublisher
	logger     *logger.Logger
}

// NewWebhookHandler applies events inline, or queues them when publisher is
// not nil.
func NewWebhookHandler(secret string, dispatcher EventDispatcher, publisher EventPublisher, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:     secret,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     log,
	}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
		return
	}

	if !VerifySignature(h.secret, body, c.GetHeader(signatureHeader)) {
		h.logger.Error("Invalid webhook signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, err := events.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(c.Request.Context(), event); err != nil {
			h.logger.Error("Failed to queue webhook %s: %v", event.Event, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), event); err != nil {
		h.logger.Error("Webhook processing error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Status answers Lightspeed's endpoint verification.
func (h *WebhookHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Webhook endpoint active"})
}

// VerifySignature checks a hex HMAC-SHA256 of body. A missing secret or
// signature never verifies.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
