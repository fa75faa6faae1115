package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-backend/logger"
	"attendance-backend/models"
)

// CheckInPipeline is the orchestrator surface the HTTP layer depends on.
type CheckInPipeline interface {
	HandleCheckIn(ctx context.Context, req models.CheckInRequest) *models.CheckInResult
}

// CheckinHandler exposes the check-in pipeline over HTTP: the Luma webhook
// and the admin-triggered manual check-in.
type CheckinHandler struct {
	pipeline      CheckInPipeline
	webhookSecret string
}

// NewCheckinHandler creates a check-in handler. An empty webhook secret
// disables signature verification (development mode).
func NewCheckinHandler(pipeline CheckInPipeline, webhookSecret string) *CheckinHandler {
	return &CheckinHandler{pipeline: pipeline, webhookSecret: webhookSecret}
}

// Webhook handles POST /webhook/check-in deliveries from Luma. Duplicate
// deliveries return 200 with alreadyMinted set; the sender's retries are the
// intended resilience mechanism.
func (h *CheckinHandler) Webhook(c *gin.Context) {
	if !h.verifySignature(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid webhook signature"})
		return
	}

	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	logger.Info("received check-in webhook: event=%s attendee=%s", req.EventID, req.AttendeeID)
	h.respond(c, h.pipeline.HandleCheckIn(c.Request.Context(), req))
}

// ManualCheckIn handles POST /manual-check-in for admins, running the same
// pipeline with a server-side timestamp.
func (h *CheckinHandler) ManualCheckIn(c *gin.Context) {
	var req struct {
		EventID    string `json:"eventId" binding:"required"`
		AttendeeID string `json:"attendeeId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required parameters: eventId, attendeeId"})
		return
	}

	logger.Info("manual check-in triggered: event=%s attendee=%s", req.EventID, req.AttendeeID)

	result := h.pipeline.HandleCheckIn(c.Request.Context(), models.CheckInRequest{
		EventID:     req.EventID,
		AttendeeID:  req.AttendeeID,
		CheckInTime: time.Now().Format(time.RFC3339),
	})
	h.respond(c, result)
}

func (h *CheckinHandler) respond(c *gin.Context, result *models.CheckInResult) {
	switch {
	case result.Success:
		c.JSON(http.StatusOK, result)
	case result.Rejected:
		c.JSON(http.StatusBadRequest, result)
	default:
		c.JSON(http.StatusInternalServerError, result)
	}
}

// verifySignature checks the HMAC-SHA256 webhook signature when a secret is
// configured. The body is restored for the JSON binding that follows.
func (h *CheckinHandler) verifySignature(c *gin.Context) bool {
	if h.webhookSecret == "" {
		return true
	}

	signature := c.GetHeader("X-Luma-Signature")
	if signature == "" {
		return false
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return false
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
