package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pubshark/backend/internal/models"
)

type NewsletterHandler struct {
	newsletter NewsletterService
}

func NewNewsletterHandler(newsletter NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{newsletter: newsletter}
}

func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	var input models.SubscribeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Email is required")
		return
	}

	sub, err := h.newsletter.Subscribe(c.Request.Context(), input.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	if sub.Confirmed {
		c.JSON(http.StatusOK, gin.H{"message": "Already subscribed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Check your inbox to confirm the subscription"})
}

// Confirm is the target of the emailed link, so it reads the query string.
func (h *NewsletterHandler) Confirm(c *gin.Context) {
	if err := h.newsletter.Confirm(c.Request.Context(), c.Query("email"), c.Query("token")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription confirmed"})
}
