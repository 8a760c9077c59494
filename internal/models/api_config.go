package models

// APIType defines the kind of endpoint a rate limit applies to.
type APIType string

const (
	APITypeREST APIType = "REST"
)

// RateLimitConfig holds token bucket parameters.
type RateLimitConfig struct {
	BucketSize      int `bson:"bucket_size" json:"bucket_size"`
	TokenRefillRate int `bson:"token_refill_rate" json:"token_refill_rate"` // Tokens per second
}

// APIEndpointConfig overrides the default rate limits for one route.
// Stored in the `api_endpoints_config` collection, keyed by gin's FullPath (e.g. "/api/leads/").
type APIEndpointConfig struct {
	Base          `bson:",inline"`
	Type          APIType          `bson:"type" json:"type"`
	Endpoint      string           `bson:"endpoint" json:"endpoint"`
	AuthRequired  bool             `bson:"auth_required" json:"auth_required"`
	RateLimitSoft *RateLimitConfig `bson:"rate_limit_soft,omitempty" json:"rate_limit_soft,omitempty"`
	RateLimitHard *RateLimitConfig `bson:"rate_limit_hard,omitempty" json:"rate_limit_hard,omitempty"`
}
