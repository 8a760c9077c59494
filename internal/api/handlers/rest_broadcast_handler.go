package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api/middleware"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
)

// RestBroadcastHandler manages site-wide banners.
type RestBroadcastHandler struct {
	broadcastService services.IBroadcastService
}

func NewRestBroadcastHandler(broadcastService services.IBroadcastService) *RestBroadcastHandler {
	return &RestBroadcastHandler{broadcastService: broadcastService}
}

// Active handles GET /api/broadcasts/active. The body is null when no banner is active.
func (h *RestBroadcastHandler) Active(c *gin.Context) {
	b, err := h.broadcastService.GetActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *RestBroadcastHandler) List(c *gin.Context) {
	list, err := h.broadcastService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *RestBroadcastHandler) Create(c *gin.Context) {
	var input services.BroadcastInput
	if !bindJSON(c, &input) {
		return
	}
	b, err := h.broadcastService.Create(c.Request.Context(), middleware.UserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// Activate handles PUT /api/broadcasts/:id/activate; any other active banner is switched off.
func (h *RestBroadcastHandler) Activate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.broadcastService.Activate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *RestBroadcastHandler) DeactivateAll(c *gin.Context) {
	if err := h.broadcastService.DeactivateAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all broadcasts deactivated"})
}

func (h *RestBroadcastHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.broadcastService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "broadcast removed"})
}

// SendToAll copies the banner into every user's inbox.
func (h *RestBroadcastHandler) SendToAll(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sent, err := h.broadcastService.SendToAll(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "broadcast sent", "sent": sent})
}
