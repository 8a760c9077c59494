package services

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/db"
	"github.com/myloveankyy/xkey-auction-sub000/internal/lifecycle"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/storage"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

type mockJobQueue struct {
	mock.Mock
}

func (m *mockJobQueue) EnqueueEmail(ctx context.Context, to, templateID string, data map[string]any) error {
	args := m.Called(ctx, to, templateID, data)
	return args.Error(0)
}

func (m *mockJobQueue) EnqueueImageProcess(ctx context.Context, key string, vehicleID utils.SixID) error {
	args := m.Called(ctx, key, vehicleID)
	return args.Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:                 "xKey",
		JwtSecret:               "test-secret",
		JwtTTL:                  time.Hour,
		PasswordRegexp:          "^.{6,}$",
		MaxGalleryImages:        10,
		ImageMaxSizeMB:          10,
		NotificationInboxLimit:  50,
		ActiveBroadcastCacheTTL: time.Minute,
		AdminPanelURL:           "https://admin.xkey.example.com",
	}
}

// testEnv wires every service against one throwaway database.
type testEnv struct {
	db            *mongo.Database
	cfg           *config.Config
	store         *storage.LocalStorage
	jobs          *mockJobQueue
	users         IUserService
	notifications INotificationService
	vehicles      IVehicleService
	leads         ILeadService
	broadcasts    IBroadcastService
}

func newTestEnv(t *testing.T, dbName string) *testEnv {
	t.Helper()
	database := utils.SetupTestDB(t, dbName,
		usersCollection, vehiclesCollection, leadsCollection,
		notificationsCollection, broadcastsCollection, broadcastStateCollection)
	require.NoError(t, db.EnsureIndexes(context.Background(), database))

	cfg := testConfig()
	store, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)

	jobs := &mockJobQueue{}
	jobs.On("EnqueueEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	jobs.On("EnqueueImageProcess", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	users := NewUserService(database, cfg)
	notifications := NewNotificationService(database, cfg, nil, users)
	vehicles := NewVehicleService(database, cfg, store, jobs)
	return &testEnv{
		db:            database,
		cfg:           cfg,
		store:         store,
		jobs:          jobs,
		users:         users,
		notifications: notifications,
		vehicles:      vehicles,
		leads:         NewLeadService(database, cfg, vehicles, users, notifications, jobs),
		broadcasts:    NewBroadcastService(database, cfg, nil, users, notifications),
	}
}

var userSeq int

func (e *testEnv) seller(t *testing.T) lifecycle.Actor {
	t.Helper()
	userSeq++
	res, err := e.users.Register(context.Background(), RegisterInput{
		Name:     fmt.Sprintf("Seller %d", userSeq),
		Email:    fmt.Sprintf("seller%d@example.com", userSeq),
		Password: "secret123",
	})
	require.NoError(t, err)
	return lifecycle.Actor{UserID: res.ID}
}

func (e *testEnv) admin(t *testing.T) lifecycle.Actor {
	t.Helper()
	userSeq++
	u, err := e.users.CreateAdmin(context.Background(), RegisterInput{
		Name:     fmt.Sprintf("Admin %d", userSeq),
		Email:    fmt.Sprintf("admin%d@example.com", userSeq),
		Password: "secret123",
	})
	require.NoError(t, err)
	return lifecycle.Actor{UserID: u.ID, IsAdmin: true}
}

func testImage(name string) *storage.Upload {
	data := []byte("fake image " + name)
	return &storage.Upload{Filename: name, ContentType: "image/jpeg", Size: int64(len(data)), Body: bytes.NewReader(data)}
}

func vehicleInput(listingType models.ListingType, price float64) VehicleInput {
	return VehicleInput{
		Name:            "Maruti Swift VXI 2019",
		Category:        "hatchback",
		LongDescription: "Single owner, full service history.",
		Pros:            []string{"Fuel efficient", " "},
		Cons:            []string{"Small boot"},
		SellingPrice:    price,
		ListingType:     listingType,
	}
}

func (e *testEnv) createVehicle(t *testing.T, actor lifecycle.Actor, listingType models.ListingType, price float64) *models.Vehicle {
	t.Helper()
	v, err := e.vehicles.Create(context.Background(), actor, vehicleInput(listingType, price), testImage("thumb.jpg"), nil)
	require.NoError(t, err)
	return v
}
