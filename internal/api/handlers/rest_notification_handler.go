package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api/middleware"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
)

// RestNotificationHandler serves the caller's inbox and admin messaging.
type RestNotificationHandler struct {
	notificationService services.INotificationService
}

func NewRestNotificationHandler(notificationService services.INotificationService) *RestNotificationHandler {
	return &RestNotificationHandler{notificationService: notificationService}
}

// Inbox handles GET /api/notifications/
func (h *RestNotificationHandler) Inbox(c *gin.Context) {
	items, err := h.notificationService.Inbox(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// MarkRead handles PUT /api/notifications/:id/read. Another user's notification is
// reported as not found.
func (h *RestNotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	n, err := h.notificationService.MarkRead(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllRead handles PUT /api/notifications/mark-all-read
func (h *RestNotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read", "updated": updated})
}

// SendToAll handles POST /api/notifications/send-to-all
func (h *RestNotificationHandler) SendToAll(c *gin.Context) {
	var input services.MessageInput
	if !bindJSON(c, &input) {
		return
	}
	sent, err := h.notificationService.SendToAll(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "notification sent", "sent": sent})
}

// SendToUser handles POST /api/notifications/send-to-user
func (h *RestNotificationHandler) SendToUser(c *gin.Context) {
	var input services.DirectMessageInput
	if !bindJSON(c, &input) {
		return
	}
	n, err := h.notificationService.SendToUser(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}
