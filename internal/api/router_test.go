package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myloveankyy/xkey-auction-sub000/internal/auth"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/storage"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

const routerSecret = "router-test-secret"

// Only the methods reached by these tests are implemented; anything else panics.
type stubUsers struct {
	services.IUserService
	users map[utils.SixID]*models.User
}

func (s stubUsers) FindByID(ctx context.Context, id utils.SixID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, services.ErrUserNotFound
}

type stubBroadcasts struct {
	services.IBroadcastService
}

func (stubBroadcasts) GetActive(ctx context.Context) (*models.Broadcast, error) {
	return nil, nil
}

func testRouter(t *testing.T) (*gin.Engine, *models.User, storage.IStorage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	seller := &models.User{Base: models.Base{ID: utils.NewSixID()}, Email: "s@example.com", Role: models.RoleSeller}
	store, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	cfg := &config.Config{AppEnv: "development", JwtSecret: routerSecret, UploadsURLPrefix: "/uploads"}
	svc := &Services{
		Users:      stubUsers{users: map[utils.SixID]*models.User{seller.ID: seller}},
		Broadcasts: stubBroadcasts{},
	}
	return SetupRouter(cfg, svc, store, nil, nil), seller, store
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouter_AccessControl(t *testing.T) {
	r, seller, _ := testRouter(t)
	token, err := auth.GenerateJWT(seller.ID, routerSecret, time.Hour)
	require.NoError(t, err)
	stranger, err := auth.GenerateJWT(utils.NewSixID(), routerSecret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"me requires a token", "GET", "/api/users/me", "", http.StatusUnauthorized},
		{"me with a token", "GET", "/api/users/me", token, http.StatusOK},
		{"deleted user", "GET", "/api/users/me", stranger, http.StatusUnauthorized},
		{"leads list is admin only", "GET", "/api/leads/", token, http.StatusForbidden},
		{"approve is admin only", "PUT", "/api/vehicles/" + utils.NewSixID().String() + "/approve-listing", token, http.StatusForbidden},
		{"send to all is admin only", "POST", "/api/notifications/send-to-all", token, http.StatusForbidden},
		{"broadcast admin list", "GET", "/api/broadcasts/", token, http.StatusForbidden},
		{"active broadcast is public", "GET", "/api/broadcasts/active", "", http.StatusOK},
		{"negotiate requires a token", "POST", "/api/vehicles/" + utils.NewSixID().String() + "/negotiate", "", http.StatusUnauthorized},
		{"ping", "GET", "/api/ping", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestSetupRouter_ServesLocalUploads(t *testing.T) {
	r, _, store := testRouter(t)
	body := []byte("\x89PNG fake")
	require.NoError(t, store.Save(context.Background(), "vehicles/abc/photo.png", bytes.NewReader(body), int64(len(body)), "image/png"))

	w := serve(r, "GET", store.URL("vehicles/abc/photo.png"), "")
	assert.Equal(t, http.StatusOK, w.Code)
	got, _ := io.ReadAll(w.Body)
	assert.Equal(t, body, got)
}

func TestSetupServiceRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	shutdown := make(chan struct{}, 1)
	r := SetupServiceRouter(&config.Config{}, nil, shutdown)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNotFound, post(`{"method":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"method":"getTestEmail","arguments":["only-one"]}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)

	assert.Equal(t, http.StatusOK, post(`{"method":"shutdown"}`).Code)
	select {
	case <-shutdown:
	default:
		t.Fatal("shutdown was not signalled")
	}
	// A second request must not block on the full channel.
	shutdown <- struct{}{}
	assert.Equal(t, http.StatusOK, post(`{"method":"shutdown"}`).Code)
}
