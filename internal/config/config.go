package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RunModeSeed is the run mode of the cmd/seed tool.
const RunModeSeed = "seed"

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env
	AppEnv  string

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret       string
	JwtTTL          time.Duration
	CaptchaTokenTTL time.Duration

	// Server
	ApiPort            string
	ServiceApiPort     string
	CorsAllowedOrigins []string // empty allows any origin

	// Cloudflare
	CloudflareTurnstileSecretKey string
	CloudflareSiteVerifyURL      string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	AdminPanelURL   string
	MockServices    bool   // Store emails in Redis instead of sending them
	LogEmailsPath   string // Optional file that receives a copy of every email

	// Uploads
	StorageBackend   string
	UploadsDir       string
	UploadsURLPrefix string
	MaxGalleryImages int

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseS3URL     string
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// App Defaults
	AppName                 string
	PasswordRegexp          string
	NotificationInboxLimit  int
	ActiveBroadcastCacheTTL time.Duration

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// IsProduction reports whether APP_ENV is set to production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		v, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(v) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	// The seed tool never issues tokens.
	if runMode == RunModeSeed {
		cfg.JwtSecret = getEnv("JWT_SECRET", "")
	} else if cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET"); err != nil {
		return nil, err
	}

	cfg.AppEnv = getEnv("APP_ENV", "development")
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "xkey")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.ApiPort = getEnv("API_PORT", "5000")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CorsAllowedOrigins = strings.Split(origins, ",")
	}
	cfg.CloudflareTurnstileSecretKey = getEnv("CLOUDFLARE_TURNSTILE_SECRET_KEY", "")
	cfg.CloudflareSiteVerifyURL = getEnv("CLOUDFLARE_SITEVERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@xkey.example.com")
	cfg.AdminPanelURL = getEnv("ADMIN_PANEL_URL", "http://localhost:5173")
	cfg.MockServices = getEnv("MOCK_SERVICES", "") == "true"
	cfg.LogEmailsPath = getEnv("LOG_EMAILS", "")
	cfg.StorageBackend = getEnv("STORAGE_BACKEND", StorageLocal)
	cfg.UploadsDir = getEnv("UPLOADS_DIR", "uploads")
	cfg.UploadsURLPrefix = getEnv("UPLOADS_URL_PREFIX", "/uploads")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")
	cfg.AppName = getEnv("APP_NAME", "xKey")
	cfg.PasswordRegexp = getEnv("PASSWORD_REGEXP", "^.{6,}$")

	if cfg.StorageBackend != StorageLocal && cfg.StorageBackend != StorageS3 {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: must be %q or %q", cfg.StorageBackend, StorageLocal, StorageS3)
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}
	if cfg.SmtpPort, err = getInt("SMTP_PORT", "587"); err != nil {
		return nil, err
	}
	if cfg.MaxGalleryImages, err = getInt("MAX_GALLERY_IMAGES", "10"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION", "2048"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getInt("IMAGE_MAX_SIZE_MB", "10"); err != nil {
		return nil, err
	}
	if cfg.NotificationInboxLimit, err = getInt("NOTIFICATION_INBOX_LIMIT", "50"); err != nil {
		return nil, err
	}

	// 30 days, matching the session length sellers are used to.
	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "2592000"); err != nil {
		return nil, err
	}
	if cfg.CaptchaTokenTTL, err = getSeconds("CAPTCHA_TOKEN_TTL", "1200"); err != nil {
		return nil, err
	}
	if cfg.ActiveBroadcastCacheTTL, err = getSeconds("ACTIVE_BROADCAST_CACHE_TTL_SECONDS", "60"); err != nil {
		return nil, err
	}

	// Rate Limiting
	if cfg.RateLimitSoftBucketSize, err = getInt("RATE_LIMIT_SOFT_BUCKET_SIZE", "5"); err != nil {
		return nil, err
	}
	if cfg.RateLimitSoftRefillRate, err = getInt("RATE_LIMIT_SOFT_REFILL_RATE", "1"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardBucketSize, err = getInt("RATE_LIMIT_HARD_BUCKET_SIZE", "20"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardRefillRate, err = getInt("RATE_LIMIT_HARD_REFILL_RATE", "4"); err != nil {
		return nil, err
	}

	return cfg, nil
}
