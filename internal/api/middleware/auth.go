package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/auth"
	"github.com/myloveankyy/xkey-auction-sub000/internal/lifecycle"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyIsAdmin holds the key for admin status in Gin context.
	ContextKeyIsAdmin = "isAdmin"
	// ContextKeyUser holds the resolved *models.User.
	ContextKeyUser = "user"
)

var (
	errAuthHeaderMissing = apperr.Authentication("AUTH_REQUIRED", "authorization header required")
	errAuthHeaderFormat  = apperr.Authentication("INVALID_AUTH_HEADER", "authorization header format must be Bearer {token}")
	errInvalidToken      = apperr.Authentication("INVALID_TOKEN", "invalid or expired token")
	errUserGone          = apperr.Authentication("USER_NOT_FOUND", "user no longer exists")
	errAdminRequired     = apperr.Authorization("ADMIN_REQUIRED", "administrator privileges required")
)

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), apperr.ToResponse(err, false))
}

// AuthMiddleware validates the bearer token and loads the user on every request,
// so role changes and deletions take effect immediately.
func AuthMiddleware(jwtSecret string, userService services.IUserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, errAuthHeaderMissing)
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abort(c, errAuthHeaderFormat)
			return
		}

		userID, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			abort(c, errInvalidToken.Wrap(err))
			return
		}

		user, err := userService.FindByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				abort(c, errUserGone)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, apperr.ToResponse(err, false))
			return
		}

		c.Set(ContextKeyUserID, user.ID)
		c.Set(ContextKeyIsAdmin, user.IsAdmin())
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// AdminMiddleware creates a Gin middleware to check for admin privileges.
// Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextKeyIsAdmin) {
			abort(c, errAdminRequired)
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's ID, or the zero ID on public routes.
func UserID(c *gin.Context) utils.SixID {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if id, ok := v.(utils.SixID); ok {
			return id
		}
	}
	return utils.SixID{}
}

// CurrentUser returns the user loaded by AuthMiddleware.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ContextKeyUser); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// Actor is the caller as seen by the vehicle lifecycle.
func Actor(c *gin.Context) lifecycle.Actor {
	return lifecycle.Actor{UserID: UserID(c), IsAdmin: c.GetBool(ContextKeyIsAdmin)}
}
