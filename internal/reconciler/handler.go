package reconciler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"leadcall_backend/platform/logger"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// Handler receives provider webhooks. Processing failures are logged
// and acknowledged anyway: returning an error would make the provider
// re-deliver, and re-delivery of a half-processed event is exactly the
// duplicate problem the ledger exists to absorb.
type Handler struct {
	service *Service
	log     *logger.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// HandleVoiceWebhook handles POST /webhook/voice.
func (h *Handler) HandleVoiceWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("webhook body read failed", "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.service.ProcessPayload(c.Request.Context(), body); err != nil {
		h.log.Error("webhook processing failed", "error", err.Error())
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
