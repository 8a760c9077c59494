package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/cache"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/db"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

var ErrBroadcastNotFound = apperr.NotFound("BROADCAST_NOT_FOUND", "broadcast not found")

// BroadcastInput creates a banner.
type BroadcastInput struct {
	Message string `json:"message" validate:"required,max=500"`
	Link    string `json:"link" validate:"max=500"`
}

// IBroadcastService manages site-wide banners.
type IBroadcastService interface {
	Create(ctx context.Context, adminID utils.SixID, input BroadcastInput) (*models.Broadcast, error)
	List(ctx context.Context) ([]models.Broadcast, error)
	Activate(ctx context.Context, id utils.SixID) (*models.Broadcast, error)
	DeactivateAll(ctx context.Context) error
	Delete(ctx context.Context, id utils.SixID) error
	// GetActive returns nil without error when nothing is active.
	GetActive(ctx context.Context) (*models.Broadcast, error)
	SendToAll(ctx context.Context, id utils.SixID) (int, error)
}

const (
	broadcastsCollection     = "broadcasts"
	broadcastStateCollection = "broadcast_state"
	activePointerID          = "active"
	activeBroadcastCacheKey  = "broadcast:active"
	activeBroadcastGenKey    = "broadcast:active:gen"
)

// activePointer is the single record that decides which broadcast is active.
// The is_active flags on broadcasts are kept in step with it for queries and
// exports, but reads always trust the pointer.
type activePointer struct {
	ID          string       `bson:"_id"`
	BroadcastID *utils.SixID `bson:"broadcast_id"`
	UpdatedAt   time.Time    `bson:"updated_at"`
}

// cachedActive wraps the value so "nothing active" can be cached too.
type cachedActive struct {
	Broadcast *models.Broadcast `json:"broadcast"`
}

type broadcastService struct {
	db                  *mongo.Database
	cfg                 *config.Config
	rdb                 *redis.Client // optional
	userService         IUserService
	notificationService INotificationService
}

func NewBroadcastService(db *mongo.Database, cfg *config.Config, rdb *redis.Client, userService IUserService, notificationService INotificationService) IBroadcastService {
	return &broadcastService{
		db:                  db,
		cfg:                 cfg,
		rdb:                 rdb,
		userService:         userService,
		notificationService: notificationService,
	}
}

func (s *broadcastService) Create(ctx context.Context, adminID utils.SixID, input BroadcastInput) (*models.Broadcast, error) {
	input.Message = normalizeText(input.Message)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	b := &models.Broadcast{
		Message:   input.Message,
		Link:      input.Link,
		CreatedBy: adminID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	collection := s.db.Collection(broadcastsCollection)
	err := db.Try(ctx, func() error {
		b.GenID()
		_, insertErr := collection.InsertOne(ctx, b)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("error inserting broadcast: %w", err)
	}
	return b, nil
}

func (s *broadcastService) List(ctx context.Context) ([]models.Broadcast, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(broadcastsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying broadcasts: %w", err)
	}
	broadcasts := []models.Broadcast{}
	if err := cursor.All(ctx, &broadcasts); err != nil {
		return nil, fmt.Errorf("error decoding broadcasts: %w", err)
	}

	activeID, err := s.activeID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range broadcasts {
		broadcasts[i].IsActive = activeID != nil && broadcasts[i].ID == *activeID
	}
	return broadcasts, nil
}

func (s *broadcastService) get(ctx context.Context, id utils.SixID) (*models.Broadcast, error) {
	var b models.Broadcast
	err := s.db.Collection(broadcastsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrBroadcastNotFound
		}
		return nil, fmt.Errorf("error finding broadcast %s: %w", id, err)
	}
	return &b, nil
}

func (s *broadcastService) activeID(ctx context.Context) (*utils.SixID, error) {
	var p activePointer
	err := s.db.Collection(broadcastStateCollection).FindOne(ctx, bson.M{"_id": activePointerID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading active broadcast: %w", err)
	}
	return p.BroadcastID, nil
}

func (s *broadcastService) setActiveID(ctx context.Context, id *utils.SixID) error {
	_, err := s.db.Collection(broadcastStateCollection).UpdateOne(ctx,
		bson.M{"_id": activePointerID},
		bson.M{"$set": bson.M{"broadcast_id": id, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error updating active broadcast: %w", err)
	}
	return nil
}

// Activate makes id the only active broadcast. The pointer write is the atomic
// switch; the flag writes that follow only mirror it.
func (s *broadcastService) Activate(ctx context.Context, id utils.SixID) (*models.Broadcast, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.setActiveID(ctx, &id); err != nil {
		return nil, err
	}
	defer s.invalidate(ctx)

	collection := s.db.Collection(broadcastsCollection)
	now := time.Now().UTC()
	if _, err := collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$ne": id}, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	); err != nil {
		return nil, fmt.Errorf("error deactivating other broadcasts: %w", err)
	}
	if _, err := collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	); err != nil {
		return nil, fmt.Errorf("error activating broadcast %s: %w", id, err)
	}

	b.IsActive = true
	b.UpdatedAt = now
	log.Printf("Broadcast %s activated", id)
	return b, nil
}

func (s *broadcastService) DeactivateAll(ctx context.Context) error {
	if err := s.setActiveID(ctx, nil); err != nil {
		return err
	}
	defer s.invalidate(ctx)

	if _, err := s.db.Collection(broadcastsCollection).UpdateMany(ctx,
		bson.M{"is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()}},
	); err != nil {
		return fmt.Errorf("error deactivating broadcasts: %w", err)
	}
	return nil
}

func (s *broadcastService) Delete(ctx context.Context, id utils.SixID) error {
	res, err := s.db.Collection(broadcastsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("error deleting broadcast %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrBroadcastNotFound
	}
	// Clear the pointer only if it still names the deleted broadcast.
	if _, err := s.db.Collection(broadcastStateCollection).UpdateOne(ctx,
		bson.M{"_id": activePointerID, "broadcast_id": id},
		bson.M{"$set": bson.M{"broadcast_id": nil, "updated_at": time.Now().UTC()}},
	); err != nil {
		return fmt.Errorf("error clearing active broadcast: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *broadcastService) GetActive(ctx context.Context) (*models.Broadcast, error) {
	cacheable := false
	var gen int64
	if s.rdb != nil {
		var cached cachedActive
		hit, err := cache.GetJSON(ctx, s.rdb, activeBroadcastCacheKey, &cached)
		if err != nil {
			log.Printf("WARNING: active broadcast cache read failed: %v", err)
		} else if hit {
			return cached.Broadcast, nil
		}
		// The generation is read before Mongo so a concurrent invalidation voids the write below.
		if gen, err = cache.Generation(ctx, s.rdb, activeBroadcastGenKey); err != nil {
			log.Printf("WARNING: active broadcast cache generation read failed: %v", err)
		} else {
			cacheable = true
		}
	}

	active, err := s.loadActive(ctx)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if _, err := cache.SetJSONAtGeneration(ctx, s.rdb, activeBroadcastCacheKey, activeBroadcastGenKey, gen, cachedActive{Broadcast: active}, s.cfg.ActiveBroadcastCacheTTL); err != nil {
			log.Printf("WARNING: active broadcast cache write failed: %v", err)
		}
	}
	return active, nil
}

func (s *broadcastService) loadActive(ctx context.Context) (*models.Broadcast, error) {
	id, err := s.activeID(ctx)
	if err != nil || id == nil {
		return nil, err
	}
	b, err := s.get(ctx, *id)
	if err != nil {
		if errors.Is(err, ErrBroadcastNotFound) {
			return nil, nil
		}
		return nil, err
	}
	b.IsActive = true
	return b, nil
}

func (s *broadcastService) invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := cache.Invalidate(ctx, s.rdb, activeBroadcastCacheKey, activeBroadcastGenKey); err != nil {
		log.Printf("WARNING: failed to invalidate active broadcast cache: %v", err)
	}
}

// SendToAll copies the broadcast into every user's inbox.
func (s *broadcastService) SendToAll(ctx context.Context, id utils.SixID) (int, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return 0, err
	}
	ids, err := s.userService.ListActiveUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	count, err := s.notificationService.NotifyUsers(ctx, ids, b.Message, b.Link)
	if err != nil {
		return count, err
	}
	log.Printf("Broadcast %s sent to %d users", id, count)
	return count, nil
}
