package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/myloveankyy/xkey-auction-sub000/internal/apperr"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterIdleTimeout     = 30 * time.Minute
)

type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiterMiddleware keeps two token buckets per client and endpoint. Exhausting the
// hard bucket is a 429; exhausting the soft bucket asks for a captcha with a 418.
type RateLimiterMiddleware struct {
	clients       map[string]*clientLimiter
	mu            sync.Mutex
	cfg           *config.Config
	configService services.IConfigService // optional per-endpoint overrides
}

// NewRateLimiterMiddleware starts a janitor that runs until ctx is cancelled.
func NewRateLimiterMiddleware(ctx context.Context, cfg *config.Config, configService services.IConfigService) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients:       make(map[string]*clientLimiter),
		cfg:           cfg,
		configService: configService,
	}
	go rm.cleanupClients(ctx)
	return rm
}

func clientIdentifier(c *gin.Context) string {
	return fmt.Sprintf("%s|%s|%s|%s", c.FullPath(), c.ClientIP(), c.GetHeader("X-BFP"), c.GetHeader("X-SPA"))
}

func (rm *RateLimiterMiddleware) clientLimiter(identifier string, soft, hard models.RateLimitConfig) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(soft.TokenRefillRate), soft.BucketSize),
			hardLimiter: rate.NewLimiter(rate.Limit(hard.TokenRefillRate), hard.BucketSize),
		}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

func (rm *RateLimiterMiddleware) cleanupClients(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rm.sweep(time.Now()); n > 0 {
				log.Printf("Rate limiter cleanup removed %d old client entries.", n)
			}
		}
	}
}

func (rm *RateLimiterMiddleware) sweep(now time.Time) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	count := 0
	for id, client := range rm.clients {
		if now.Sub(client.lastSeen) > limiterIdleTimeout {
			delete(rm.clients, id)
			count++
		}
	}
	return count
}

func (rm *RateLimiterMiddleware) limitsFor(c *gin.Context) (soft, hard models.RateLimitConfig) {
	soft = models.RateLimitConfig{BucketSize: rm.cfg.RateLimitSoftBucketSize, TokenRefillRate: rm.cfg.RateLimitSoftRefillRate}
	hard = models.RateLimitConfig{BucketSize: rm.cfg.RateLimitHardBucketSize, TokenRefillRate: rm.cfg.RateLimitHardRefillRate}
	if rm.configService == nil {
		return soft, hard
	}
	// Limits are per client, so the guest override applies to everyone.
	apiCfg, err := rm.configService.GetAPIEndpointConfig(c.Request.Context(), models.APITypeREST, c.FullPath(), false)
	if err != nil {
		log.Printf("Error fetching API config for %s: %v. Using defaults.", c.FullPath(), err)
		return soft, hard
	}
	if apiCfg != nil {
		if apiCfg.RateLimitSoft != nil {
			soft = *apiCfg.RateLimitSoft
		}
		if apiCfg.RateLimitHard != nil {
			hard = *apiCfg.RateLimitHard
		}
	}
	return soft, hard
}

var (
	errRateLimited     = apperr.ErrorResponse{Error: "rate limit exceeded", Code: "RATE_LIMITED"}
	errCaptchaRequired = apperr.ErrorResponse{Error: "captcha validation required", Code: "CAPTCHA_REQUIRED"}
)

// Limit must run after CaptchaMiddleware.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := clientIdentifier(c)
		soft, hard := rm.limitsFor(c)
		limiter := rm.clientLimiter(clientKey, soft, hard)

		if !limiter.hardLimiter.Allow() {
			log.Printf("Hard rate limit exceeded for client: %s", clientKey)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errRateLimited)
			return
		}
		if !c.GetBool(ContextKeyIsHumanVerified) && !limiter.softLimiter.Allow() {
			log.Printf("Soft rate limit exceeded for client: %s (captcha required)", clientKey)
			c.AbortWithStatusJSON(http.StatusTeapot, errCaptchaRequired)
			return
		}
		c.Next()
	}
}
