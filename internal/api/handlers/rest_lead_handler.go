package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api/middleware"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RestLeadHandler handles buyer callback requests.
type RestLeadHandler struct {
	leadService services.ILeadService
}

func NewRestLeadHandler(leadService services.ILeadService) *RestLeadHandler {
	return &RestLeadHandler{leadService: leadService}
}

// Create handles POST /api/leads/. Admins are notified before the response is written.
func (h *RestLeadHandler) Create(c *gin.Context) {
	var input services.LeadInput
	if !bindJSON(c, &input) {
		return
	}
	lead, err := h.leadService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// List handles GET /api/leads/
func (h *RestLeadHandler) List(c *gin.Context) {
	leads, err := h.leadService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, leads)
}

// Update handles PUT /api/leads/:id
func (h *RestLeadHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input services.LeadUpdateInput
	if !bindJSON(c, &input) {
		return
	}
	lead, err := h.leadService.Update(c.Request.Context(), middleware.UserID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// Delete handles DELETE /api/leads/:id
func (h *RestLeadHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.leadService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "lead removed"})
}

// Export handles GET /api/leads/export. The workbook is built in memory so that a
// failure can still be reported as JSON.
func (h *RestLeadHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.leadService.ExportXLSX(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("leads-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
