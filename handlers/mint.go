package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance-backend/logger"
	"attendance-backend/models"
	"attendance-backend/storage"
)

// MintHandler exposes read-only mint history for the admin UI and gallery.
type MintHandler struct {
	ledger *storage.MintLedger
	events *storage.EventRepository
}

// NewMintHandler creates a new mint handler.
func NewMintHandler(ledger *storage.MintLedger, events *storage.EventRepository) *MintHandler {
	return &MintHandler{ledger: ledger, events: events}
}

// GetEventMints returns all mints for an event, newest first.
func (h *MintHandler) GetEventMints(c *gin.Context) {
	eventID := c.Param("id")

	if _, err := h.events.GetByID(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	mints, err := h.ledger.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		logger.Error("failed to list mints for event %s: %v", eventID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"mints": mints, "count": len(mints)})
}

// GetAttendeeMints returns all mints for an attendee email, newest first.
func (h *MintHandler) GetAttendeeMints(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Attendee email is required"})
		return
	}

	mints, err := h.ledger.ListByAttendee(c.Request.Context(), email)
	if err != nil {
		logger.Error("failed to list mints for attendee %s: %v", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"mints": mints, "count": len(mints)})
}

// GetEventStats returns minting statistics for an event.
func (h *MintHandler) GetEventStats(c *gin.Context) {
	eventID := c.Param("id")

	event, err := h.events.GetByID(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total, err := h.ledger.CountByEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	recent, err := h.ledger.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if len(recent) > 10 {
		recent = recent[:10]
	}

	c.JSON(http.StatusOK, models.EventStats{
		EventID:     eventID,
		EventName:   event.Name,
		TotalMints:  total,
		RecentMints: recent,
	})
}
