package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api/handlers"
	"github.com/myloveankyy/xkey-auction-sub000/internal/api/middleware"
	"github.com/myloveankyy/xkey-auction-sub000/internal/captcha"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/email"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/storage"
)

// Services bundles the application services shared by the API and the workers.
type Services struct {
	Users          services.IUserService
	Vehicles       services.IVehicleService
	Leads          services.ILeadService
	Notifications  services.INotificationService
	Broadcasts     services.IBroadcastService
	EmailTemplates services.IEmailTemplateService
	Config         services.IConfigService
}

// NewServices wires the services in dependency order.
func NewServices(db *mongo.Database, cfg *config.Config, rdb *redis.Client, store storage.IStorage, jobs services.IJobQueue, configSvc services.IConfigService) *Services {
	userService := services.NewUserService(db, cfg)
	vehicleService := services.NewVehicleService(db, cfg, store, jobs)
	notificationService := services.NewNotificationService(db, cfg, configSvc, userService)
	return &Services{
		Users:          userService,
		Vehicles:       vehicleService,
		Leads:          services.NewLeadService(db, cfg, vehicleService, userService, notificationService, jobs),
		Notifications:  notificationService,
		Broadcasts:     services.NewBroadcastService(db, cfg, rdb, userService, notificationService),
		EmailTemplates: services.NewEmailTemplateService(db),
		Config:         configSvc,
	}
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, svc *Services, store storage.IStorage, rateLimiter *middleware.RateLimiterMiddleware, captchaVerifier captcha.ITurnstileVerifier) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigins))
	r.Use(middleware.ErrorDetail(!cfg.IsProduction()))

	if local, ok := store.(*storage.LocalStorage); ok {
		r.Static(cfg.UploadsURLPrefix, local.Root())
	}

	userHandler := handlers.NewRestUserHandler(svc.Users)
	vehicleHandler := handlers.NewRestVehicleHandler(svc.Vehicles)
	leadHandler := handlers.NewRestLeadHandler(svc.Leads)
	notificationHandler := handlers.NewRestNotificationHandler(svc.Notifications)
	broadcastHandler := handlers.NewRestBroadcastHandler(svc.Broadcasts)
	configHandler := handlers.NewRestConfigHandler(svc.Config)

	authRequired := middleware.AuthMiddleware(cfg.JwtSecret, svc.Users)
	adminRequired := middleware.AdminMiddleware()

	// Anonymous writes go through the captcha check before the limiter so that a
	// verified client is only held to the hard limit.
	var guarded []gin.HandlerFunc
	if rateLimiter != nil {
		guarded = append(guarded, middleware.CaptchaMiddleware(cfg, captchaVerifier), rateLimiter.Limit())
	}
	guard := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, guarded...), h)
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/config", configHandler.GetPublicConfig)
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		users := apiGroup.Group("/users")
		users.POST("/register", guard(userHandler.Register)...)
		users.POST("/login", guard(userHandler.Login)...)
		users.GET("/me", authRequired, userHandler.Me)
		users.POST("/create-admin", authRequired, adminRequired, userHandler.CreateAdmin)
		users.GET("/", authRequired, adminRequired, userHandler.ListUsers)
		users.DELETE("/:id", authRequired, adminRequired, userHandler.DeleteUser)

		vehicles := apiGroup.Group("/vehicles")
		vehicles.GET("/", vehicleHandler.ListPublic)
		vehicles.GET("/my-listings", authRequired, vehicleHandler.MyListings)
		vehicles.GET("/admin/all", authRequired, adminRequired, vehicleHandler.AdminAll)
		vehicles.GET("/:id", vehicleHandler.Get)
		vehicles.POST("/", authRequired, vehicleHandler.Create)
		vehicles.PUT("/:id/approve-listing", authRequired, adminRequired, vehicleHandler.Approve)
		vehicles.PUT("/:id/reject-listing", authRequired, adminRequired, vehicleHandler.Reject)
		vehicles.POST("/:id/negotiate", authRequired, vehicleHandler.Negotiate)
		vehicles.POST("/:id/accept-offer", authRequired, vehicleHandler.AcceptOffer)
		vehicles.DELETE("/:id", authRequired, vehicleHandler.Delete)

		leads := apiGroup.Group("/leads")
		leads.POST("/", guard(leadHandler.Create)...)
		leads.GET("/", authRequired, adminRequired, leadHandler.List)
		leads.GET("/export", authRequired, adminRequired, leadHandler.Export)
		leads.PUT("/:id", authRequired, adminRequired, leadHandler.Update)
		leads.DELETE("/:id", authRequired, adminRequired, leadHandler.Delete)

		notifications := apiGroup.Group("/notifications", authRequired)
		notifications.GET("/", notificationHandler.Inbox)
		notifications.PUT("/mark-all-read", notificationHandler.MarkAllRead)
		notifications.PUT("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/send-to-all", adminRequired, notificationHandler.SendToAll)
		notifications.POST("/send-to-user", adminRequired, notificationHandler.SendToUser)

		broadcasts := apiGroup.Group("/broadcasts")
		broadcasts.GET("/active", broadcastHandler.Active)
		admin := broadcasts.Group("/", authRequired, adminRequired)
		admin.GET("/", broadcastHandler.List)
		admin.POST("/", broadcastHandler.Create)
		admin.PUT("/deactivate-all", broadcastHandler.DeactivateAll)
		admin.PUT("/:id/activate", broadcastHandler.Activate)
		admin.DELETE("/:id", broadcastHandler.Delete)
		admin.POST("/:id/send-to-all", broadcastHandler.SendToAll)
	}

	return r
}

// SetupServiceRouter configures the internal service engine. It is bound to a
// separate port and never exposed publicly.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled.")
			}
		case "getTestEmail":
			getTestEmail(c, rdb, req.Arguments)
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// getTestEmail returns and removes the last email of a template sent to an address.
// Arguments are ["templateId", "email"]. Delivery is asynchronous, so Redis is polled briefly.
func getTestEmail(c *gin.Context, rdb *redis.Client, arguments json.RawMessage) {
	var args []string
	if err := json.Unmarshal(arguments, &args); err != nil || len(args) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateId, email]"})
		return
	}
	key := email.MockEmailKey(args[1], args[0])

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var raw string
	var err error
	for i := 0; i < 10; i++ {
		raw, err = rdb.GetDel(ctx, key).Result()
		if err == nil || !errors.Is(err, redis.Nil) {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	switch {
	case errors.Is(err, redis.Nil):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", key)})
		return
	case err != nil:
		log.Printf("Service API: Error getting key %s from Redis: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
		return
	}

	var emailData map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &emailData); err != nil {
		log.Printf("Service API: Error unmarshalling email data from key %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})
}
