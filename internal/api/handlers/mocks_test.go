package handlers_test

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api/middleware"
	"github.com/myloveankyy/xkey-auction-sub000/internal/lifecycle"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/storage"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input services.RegisterInput) (*services.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}
func (m *MockUserService) Login(ctx context.Context, input services.LoginInput) (*services.AuthResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}
func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}
func (m *MockUserService) CreateAdmin(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) DeleteUser(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
func (m *MockUserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}
func (m *MockUserService) ListActiveUserIDs(ctx context.Context) ([]utils.SixID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]utils.SixID), args.Error(1)
}

// MockVehicleService
type MockVehicleService struct {
	mock.Mock
}

func (m *MockVehicleService) vehicle(args mock.Arguments) (*models.Vehicle, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}
func (m *MockVehicleService) vehicles(args mock.Arguments) ([]models.Vehicle, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}
func (m *MockVehicleService) Create(ctx context.Context, actor lifecycle.Actor, input services.VehicleInput, thumbnail *storage.Upload, gallery []storage.Upload) (*models.Vehicle, error) {
	return m.vehicle(m.Called(ctx, actor, input, thumbnail, gallery))
}
func (m *MockVehicleService) Get(ctx context.Context, id utils.SixID) (*models.Vehicle, error) {
	return m.vehicle(m.Called(ctx, id))
}
func (m *MockVehicleService) ListPublic(ctx context.Context, filter services.VehicleFilter) ([]models.Vehicle, error) {
	return m.vehicles(m.Called(ctx, filter))
}
func (m *MockVehicleService) ListBySeller(ctx context.Context, sellerID utils.SixID) ([]models.Vehicle, error) {
	return m.vehicles(m.Called(ctx, sellerID))
}
func (m *MockVehicleService) ListAll(ctx context.Context, status models.VehicleStatus) ([]models.Vehicle, error) {
	return m.vehicles(m.Called(ctx, status))
}
func (m *MockVehicleService) Approve(ctx context.Context, id utils.SixID) (*models.Vehicle, error) {
	return m.vehicle(m.Called(ctx, id))
}
func (m *MockVehicleService) Reject(ctx context.Context, id utils.SixID, reason string) (*models.Vehicle, error) {
	return m.vehicle(m.Called(ctx, id, reason))
}
func (m *MockVehicleService) SubmitOffer(ctx context.Context, actor lifecycle.Actor, id utils.SixID, input services.OfferInput) (*models.Vehicle, error) {
	return m.vehicle(m.Called(ctx, actor, id, input))
}
func (m *MockVehicleService) AcceptOffer(ctx context.Context, actor lifecycle.Actor, id utils.SixID) (*models.Vehicle, error) {
	return m.vehicle(m.Called(ctx, actor, id))
}
func (m *MockVehicleService) Delete(ctx context.Context, actor lifecycle.Actor, id utils.SixID) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

// MockLeadService
type MockLeadService struct {
	mock.Mock
}

func (m *MockLeadService) Create(ctx context.Context, input services.LeadInput) (*models.Lead, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}
func (m *MockLeadService) List(ctx context.Context) ([]models.LeadView, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LeadView), args.Error(1)
}
func (m *MockLeadService) Update(ctx context.Context, adminID, leadID utils.SixID, input services.LeadUpdateInput) (*models.Lead, error) {
	args := m.Called(ctx, adminID, leadID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Lead), args.Error(1)
}
func (m *MockLeadService) Delete(ctx context.Context, leadID utils.SixID) error {
	args := m.Called(ctx, leadID)
	return args.Error(0)
}
func (m *MockLeadService) ExportXLSX(ctx context.Context, w io.Writer) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Inbox(ctx context.Context, userID utils.SixID) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}
func (m *MockNotificationService) MarkRead(ctx context.Context, userID, notificationID utils.SixID) (*models.Notification, error) {
	args := m.Called(ctx, userID, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}
func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID utils.SixID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockNotificationService) NotifyUsers(ctx context.Context, userIDs []utils.SixID, message, link string) (int, error) {
	args := m.Called(ctx, userIDs, message, link)
	return args.Int(0), args.Error(1)
}
func (m *MockNotificationService) SendToAll(ctx context.Context, input services.MessageInput) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}
func (m *MockNotificationService) SendToUser(ctx context.Context, input services.DirectMessageInput) (*models.Notification, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

// MockBroadcastService
type MockBroadcastService struct {
	mock.Mock
}

func (m *MockBroadcastService) broadcast(args mock.Arguments) (*models.Broadcast, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Broadcast), args.Error(1)
}
func (m *MockBroadcastService) Create(ctx context.Context, adminID utils.SixID, input services.BroadcastInput) (*models.Broadcast, error) {
	return m.broadcast(m.Called(ctx, adminID, input))
}
func (m *MockBroadcastService) List(ctx context.Context) ([]models.Broadcast, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Broadcast), args.Error(1)
}
func (m *MockBroadcastService) Activate(ctx context.Context, id utils.SixID) (*models.Broadcast, error) {
	return m.broadcast(m.Called(ctx, id))
}
func (m *MockBroadcastService) DeactivateAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockBroadcastService) Delete(ctx context.Context, id utils.SixID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockBroadcastService) GetActive(ctx context.Context) (*models.Broadcast, error) {
	return m.broadcast(m.Called(ctx))
}
func (m *MockBroadcastService) SendToAll(ctx context.Context, id utils.SixID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

// MockConfigService
type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}
func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}
func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	args := m.Called(ctx, key, defaultValue)
	return args.Int(0)
}
func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	args := m.Called(ctx, key, defaultValue)
	return args.String(0)
}
func (m *MockConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	args := m.Called(ctx, key, defaultValue)
	return args.Bool(0)
}
func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	args := m.Called(ctx, key, defaultValue)
	return args.Get(0).(time.Duration)
}
func (m *MockConfigService) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	args := m.Called(ctx, key, value, isPublic)
	return args.Error(0)
}
func (m *MockConfigService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	args := m.Called(ctx, apiType, endpoint, isAuthenticated)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIEndpointConfig), args.Error(1)
}

var (
	_ services.IUserService         = (*MockUserService)(nil)
	_ services.IVehicleService      = (*MockVehicleService)(nil)
	_ services.ILeadService         = (*MockLeadService)(nil)
	_ services.INotificationService = (*MockNotificationService)(nil)
	_ services.IBroadcastService    = (*MockBroadcastService)(nil)
	_ services.IConfigService       = (*MockConfigService)(nil)
)

// --- Helpers ---

// asUser stands in for AuthMiddleware.
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, user.ID)
		c.Set(middleware.ContextKeyIsAdmin, user.IsAdmin())
		c.Set(middleware.ContextKeyUser, user)
		c.Next()
	}
}

func newUser(role models.Role) *models.User {
	return &models.User{
		Base:  models.Base{ID: utils.NewSixID()},
		Name:  "Test " + string(role),
		Email: string(role) + "@example.com",
		Role:  role,
	}
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
