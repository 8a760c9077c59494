package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/auth"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

const testSecret = "test-secret"

type fakeUsers struct {
	services.IUserService
	users map[utils.SixID]*models.User
}

func (f fakeUsers) FindByID(ctx context.Context, id utils.SixID) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, services.ErrUserNotFound
}

func newUser(role models.Role) *models.User {
	u := &models.User{Name: "Test", Email: "t@example.com", Role: role}
	u.GenID()
	return u
}

func authEngine(users fakeUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("/", AuthMiddleware(testSecret, users))
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c).String(), "admin": Actor(c).IsAdmin, "email": CurrentUser(c).Email})
	})
	authed.GET("/admin", AdminMiddleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func call(t *testing.T, r *gin.Engine, path, authHeader string) (*httptest.ResponseRecorder, apperr.ErrorResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	var body apperr.ErrorResponse
	if w.Code >= 400 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func bearer(t *testing.T, id utils.SixID) string {
	t.Helper()
	token, err := auth.GenerateJWT(id, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	seller := newUser(models.RoleSeller)
	admin := newUser(models.RoleAdmin)
	r := authEngine(fakeUsers{users: map[utils.SixID]*models.User{seller.ID: seller, admin.ID: admin}})

	w, body := call(t, r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_REQUIRED", body.Code)

	w, body = call(t, r, "/me", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_AUTH_HEADER", body.Code)

	w, body = call(t, r, "/me", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", body.Code)

	w, body = call(t, r, "/me", bearer(t, utils.NewSixID()))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "deleted users lose access immediately")
	assert.Equal(t, "USER_NOT_FOUND", body.Code)

	w, _ = call(t, r, "/me", bearer(t, seller.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"`+seller.ID.String()+`","admin":false,"email":"t@example.com"}`, w.Body.String())
}

func TestAdminMiddleware(t *testing.T) {
	seller := newUser(models.RoleSeller)
	admin := newUser(models.RoleAdmin)
	r := authEngine(fakeUsers{users: map[utils.SixID]*models.User{seller.ID: seller, admin.ID: admin}})

	w, body := call(t, r, "/admin", bearer(t, seller.ID))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ADMIN_REQUIRED", body.Code)

	w, _ = call(t, r, "/admin", bearer(t, admin.ID))
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The role comes from the store, not the token.
	seller.Role = models.RoleAdmin
	w, _ = call(t, r, "/admin", bearer(t, seller.ID))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiterSweep(t *testing.T) {
	rm := &RateLimiterMiddleware{clients: map[string]*clientLimiter{
		"old":   {lastSeen: time.Now().Add(-time.Hour)},
		"fresh": {lastSeen: time.Now()},
	}}
	assert.Equal(t, 1, rm.sweep(time.Now()))
	assert.Contains(t, rm.clients, "fresh")
	assert.NotContains(t, rm.clients, "old")
}
