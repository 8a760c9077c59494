package utils

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	testMongoURI  string
	testRedisAddr string
	loadEnvOnce   sync.Once
)

// loadTestEnv loads the project .env file and reads MONGO_URI_TEST and REDIS_ADDR_TEST.
func loadTestEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		godotenv.Load()
	}
	testMongoURI = os.Getenv("MONGO_URI_TEST")
	testRedisAddr = os.Getenv("REDIS_ADDR_TEST")
}

// SetupTestDB connects to the test MongoDB and drops the given collections.
// Tests are skipped when MONGO_URI_TEST is not configured.
func SetupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	loadEnvOnce.Do(loadTestEnv)
	if testMongoURI == "" {
		t.Skip("MONGO_URI_TEST not set; skipping MongoDB-backed test")
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database(dbName)
	for _, collection := range collections {
		_ = db.Collection(collection).Drop(context.Background())
	}
	return db
}

// SetupTestRedis connects to the test Redis and deletes the given keys before
// and after the test. Tests are skipped when REDIS_ADDR_TEST is not configured.
func SetupTestRedis(t *testing.T, keys ...string) *redis.Client {
	t.Helper()
	loadEnvOnce.Do(loadTestEnv)
	if testRedisAddr == "" {
		t.Skip("REDIS_ADDR_TEST not set; skipping Redis-backed test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	require.NoError(t, rdb.Ping(context.Background()).Err(), "Failed to connect to Redis")

	drop := func() {
		if len(keys) > 0 {
			_ = rdb.Del(context.Background(), keys...).Err()
		}
	}
	drop()
	t.Cleanup(func() {
		drop()
		_ = rdb.Close()
	})
	return rdb
}
