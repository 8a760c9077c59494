package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
)

// IConfigService exposes runtime configuration stored in MongoDB.
type IConfigService interface {
	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	Get(ctx context.Context, key string) (interface{}, error)
	GetInt(ctx context.Context, key string, defaultValue int) int
	GetString(ctx context.Context, key string, defaultValue string) string
	GetBool(ctx context.Context, key string, defaultValue bool) bool
	GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration
	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
	SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error
	GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error)
}

const (
	configCollection    = "configuration"
	apiConfigCollection = "api_endpoints_config"
	configUpdateChannel = "config_updates"
)

type configService struct {
	db       *mongo.Database
	cfg      *config.Config // env defaults
	rdb      *redis.Client
	cache    map[string]interface{}
	apiCache map[string]*models.APIEndpointConfig
	mutex    sync.RWMutex
}

// NewConfigService loads the configuration collection and, when Redis is available,
// keeps it fresh by listening for update notifications until ctx is cancelled.
func NewConfigService(ctx context.Context, db *mongo.Database, initialCfg *config.Config, rdb *redis.Client) IConfigService {
	s := &configService{
		db:       db,
		cfg:      initialCfg,
		rdb:      rdb,
		cache:    make(map[string]interface{}),
		apiCache: make(map[string]*models.APIEndpointConfig),
	}
	if err := s.Load(ctx); err != nil {
		log.Printf("WARNING: Failed to load initial config from DB: %v. Using defaults from .env", err)
	}
	if rdb != nil {
		go func() {
			if err := s.SubscribeToChanges(ctx); err != nil {
				log.Printf("CRITICAL: Config Pub/Sub listener stopped: %v", err)
			}
		}()
	}
	return s
}

// ConfigEntry represents a document in the configuration collection.
type ConfigEntry struct {
	Key    string      `bson:"key"`
	Value  interface{} `bson:"value"`
	Public bool        `bson:"public"`
}

func apiCacheKey(apiType models.APIType, endpoint string, auth bool) string {
	return fmt.Sprintf("%s#%s#%t", apiType, endpoint, auth)
}

// Load replaces both in-memory caches with the current DB contents.
func (s *configService) Load(ctx context.Context) error {
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query config collection: %w", err)
	}
	defer cursor.Close(ctx)

	newCache := make(map[string]interface{})
	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err != nil {
			log.Printf("Warning: Failed to decode config entry during load: %v", err)
			continue
		}
		newCache[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("error iterating config cursor: %w", err)
	}

	newAPICache := make(map[string]*models.APIEndpointConfig)
	apiCursor, err := s.db.Collection(apiConfigCollection).Find(ctx, bson.M{})
	if err != nil {
		log.Printf("Error querying API endpoint configs: %v", err)
	} else {
		defer apiCursor.Close(ctx)
		for apiCursor.Next(ctx) {
			var entry models.APIEndpointConfig
			if err := apiCursor.Decode(&entry); err != nil {
				log.Printf("Warning: Failed to decode API config entry during load: %v", err)
				continue
			}
			newAPICache[apiCacheKey(entry.Type, entry.Endpoint, entry.AuthRequired)] = &entry
		}
		if err := apiCursor.Err(); err != nil {
			log.Printf("Error iterating API config cursor: %v", err)
		}
	}

	s.mutex.Lock()
	s.cache = newCache
	s.apiCache = newAPICache
	s.mutex.Unlock()

	log.Printf("Loaded %d general config entries and %d API configs into cache from DB.", len(newCache), len(newAPICache))
	return nil
}

// GetAllPublic reads public keys straight from the DB, since the cache also holds private ones.
func (s *configService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	publicConfig := map[string]interface{}{}
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public config from DB: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err != nil {
			log.Printf("Warning: Failed to decode public config entry: %v", err)
			continue
		}
		publicConfig[entry.Key] = entry.Value
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public config cursor: %w", err)
	}

	if _, exists := publicConfig["APP_NAME"]; !exists {
		publicConfig["APP_NAME"] = s.cfg.AppName
	}
	if _, exists := publicConfig["MAX_GALLERY_IMAGES"]; !exists {
		publicConfig["MAX_GALLERY_IMAGES"] = s.cfg.MaxGalleryImages
	}
	return publicConfig, nil
}

// Get checks the DB-backed cache first, then the env defaults.
func (s *configService) Get(ctx context.Context, key string) (interface{}, error) {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()
	if exists {
		return val, nil
	}

	switch key {
	case "APP_NAME":
		return s.cfg.AppName, nil
	case inboxLimitKey:
		return s.cfg.NotificationInboxLimit, nil
	case "MAX_GALLERY_IMAGES":
		return s.cfg.MaxGalleryImages, nil
	default:
		return nil, fmt.Errorf("config key '%s' not found", key)
	}
}

func (s *configService) GetString(ctx context.Context, key string, defaultValue string) string {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if strVal, ok := val.(string); ok {
		return strVal
	}
	log.Printf("Warning: Config key '%s' is not a string, using default.", key)
	return defaultValue
}

func (s *configService) GetInt(ctx context.Context, key string, defaultValue int) int {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	// MongoDB might store numbers as float64 or int32/64
	switch v := val.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		log.Printf("Warning: Config key '%s' is not an integer type (%T), using default.", key, val)
		return defaultValue
	}
}

func (s *configService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if boolVal, ok := val.(bool); ok {
		return boolVal
	}
	log.Printf("Warning: Config key '%s' is not a boolean, using default.", key)
	return defaultValue
}

// GetDuration reads a number of seconds.
func (s *configService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	switch v := val.(type) {
	case int:
		return time.Duration(v) * time.Second
	case int32:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		log.Printf("Warning: Config key '%s' is not a numeric type for duration (%T), using default.", key, val)
		return defaultValue
	}
}

// SubscribeToChanges reloads everything on any message published to config_updates.
func (s *configService) SubscribeToChanges(ctx context.Context) error {
	if s.rdb == nil {
		log.Println("Redis client not configured, cannot subscribe to config changes.")
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, configUpdateChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to receive confirmation from Redis Pub/Sub subscription: %w", err)
	}

	ch := pubsub.Channel()
	log.Println("Subscribed to Redis channel for config updates:", configUpdateChannel)
	for {
		select {
		case <-ctx.Done():
			log.Println("Config Pub/Sub listener stopped.")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			log.Printf("Received config update notification on channel %s: %s", msg.Channel, msg.Payload)
			if err := s.Load(ctx); err != nil {
				log.Printf("ERROR reloading config from DB after notification: %v", err)
			}
		}
	}
}

// SetConfigValue upserts a value and tells every instance to reload.
func (s *configService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	_, err := s.db.Collection(configCollection).UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"key": key, "value": value, "public": isPublic}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert config key '%s' in DB: %w", key, err)
	}

	// This instance sees the change immediately; others wait for the notification.
	s.mutex.Lock()
	s.cache[key] = value
	s.mutex.Unlock()

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, configUpdateChannel, key).Err(); err != nil {
			log.Printf("Warning: Failed to publish config update notification for key '%s': %v", key, err)
		}
	}
	log.Printf("Updated config key '%s'.", key)
	return nil
}

// GetAPIEndpointConfig returns the override for an endpoint, falling back to the guest
// entry for authenticated callers. nil means use the defaults.
func (s *configService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if c, ok := s.apiCache[apiCacheKey(apiType, endpoint, isAuthenticated)]; ok {
		return c, nil
	}
	if isAuthenticated {
		if c, ok := s.apiCache[apiCacheKey(apiType, endpoint, false)]; ok {
			return c, nil
		}
	}
	return nil, nil
}
