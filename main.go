package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/myloveankyy/xkey-auction-sub000/internal/api"
	"github.com/myloveankyy/xkey-auction-sub000/internal/api/middleware"
	"github.com/myloveankyy/xkey-auction-sub000/internal/cache"
	"github.com/myloveankyy/xkey-auction-sub000/internal/captcha"
	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/db"
	"github.com/myloveankyy/xkey-auction-sub000/internal/email"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/storage"
	"github.com/myloveankyy/xkey-auction-sub000/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	if err := db.EnsureIndexes(ctx, mongoDb); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s storage: %v", cfg.StorageBackend, err)
	}

	emailSender := newEmailSender(cfg, redisClient)

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	configSvc := services.NewConfigService(ctx, mongoDb, cfg, redisClient)
	svc := api.NewServices(mongoDb, cfg, redisClient, store, tasks.NewDispatcher(taskClient), configSvc)
	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, store, svc.Vehicles, svc.EmailTemplates)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// The service API runs in every mode.
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Service API listening on :%s", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
	}()

	var mainApiSrv *http.Server
	var workers []*asynq.Server

	log.Printf("Starting application in '%s' mode...", cfg.RunMode)

	startAPI := func() {
		rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg, configSvc)
		router := api.SetupRouter(cfg, svc, store, rateLimiter, captcha.NewTurnstileVerifier(cfg))
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Main API listening on :%s", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			log.Println("Main API server stopped.")
		}()
	}

	startWorker := func(name string, isImageWorker, isBgWorker bool) {
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, isImageWorker, isBgWorker)
		if srv == nil {
			return
		}
		// Start rather than Run: shutdown is driven from here, including by the service API.
		if err := srv.Start(mux); err != nil {
			log.Fatalf("%s worker error: %v", name, err)
		}
		workers = append(workers, srv)
		log.Printf("%s worker started.", name)
	}

	switch cfg.RunMode {
	case "api":
		startAPI()
	case "bg":
		startWorker("Background", false, true)
	case "img":
		startWorker("Image processing", true, false)
	case "all":
		startAPI()
		startWorker("Background", false, true)
		startWorker("Image processing", true, false)
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	for _, w := range workers {
		w.Shutdown()
	}
	// Stops the config subscriber and the rate limiter janitor.
	cancel()

	wg.Wait()
	fmt.Println("Server gracefully stopped")
}

// newEmailSender picks the delivery backend and optionally mirrors every email to a file.
func newEmailSender(cfg *config.Config, redisClient *redis.Client) email.Sender {
	var primary email.Sender
	if cfg.MockServices {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primary = email.NewRedisSender(redisClient, cfg)
	} else {
		primary = email.NewSMTPSender(cfg)
	}

	composite := email.NewCompositeEmailSender(primary)
	if cfg.LogEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(cfg.LogEmailsPath, cfg)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", cfg.LogEmailsPath, err)
		} else {
			composite.AddSender(fileSender)
		}
	}
	return composite
}
