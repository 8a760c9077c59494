package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api/middleware"
	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

var (
	errInvalidID   = apperr.Validation("INVALID_ID", "invalid id format")
	errInvalidBody = apperr.Validation("INVALID_BODY", "invalid request body")
)

// respondError writes the JSON error body for err. Unclassified errors are logged
// and attached to the context for gin's logger.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(err)
	}
	c.JSON(status, apperr.ToResponse(err, c.GetBool(middleware.ContextKeyErrorDetail)))
}

// parseID reads the :id path parameter.
func parseID(c *gin.Context) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		respondError(c, errInvalidID.Wrap(err))
		return utils.SixID{}, false
	}
	return id, true
}

// bindJSON decodes the request body into dst. Field validation is left to the services.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, errInvalidBody.Wrap(err))
		return false
	}
	return true
}
