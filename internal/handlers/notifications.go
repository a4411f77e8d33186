package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications NotificationService
}

func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	items, err := h.notifications.List(c.Request.Context(), currentUser(c), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id", "notification")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// ClearAll hides the current notifications for the caller only
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	if err := h.notifications.ClearAll(c.Request.Context(), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications cleared"})
}

// Purge deletes every notification for everyone (PROTECTED - admins)
func (h *NotificationHandler) Purge(c *gin.Context) {
	n, err := h.notifications.Purge(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications purged", "deleted": n})
}
