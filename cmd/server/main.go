package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-reservation/internal/config"
	"github.com/iliyamo/hall-reservation/internal/database"
	"github.com/iliyamo/hall-reservation/internal/handler"
	"github.com/iliyamo/hall-reservation/internal/middleware"
	"github.com/iliyamo/hall-reservation/internal/queue"
	"github.com/iliyamo/hall-reservation/internal/repository"
	"github.com/iliyamo/hall-reservation/internal/router"
	"github.com/iliyamo/hall-reservation/internal/service"
)

func main() {
	// Missing .env is fine in containerized deployments where the
	// environment is injected directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories.
	txRunner := repository.NewTxRunner(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	hallRepo := repository.NewHallRepo(db)
	resourceRepo := repository.NewResourceRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	notificationRepo := repository.NewNotificationRepo(db)
	feedbackRepo := repository.NewFeedbackRepo(db)

	// Lifecycle events go to RabbitMQ; the consumer tails the queue in
	// the background and appends to the reservation log.
	publisher := queue.NewPublisher()
	go func() {
		if err := queue.StartLifecycleConsumer(); err != nil {
			log.Printf("lifecycle consumer stopped: %v", err)
		}
	}()

	svc := service.NewReservationService(
		txRunner, reservationRepo, hallRepo, userRepo,
		notificationRepo, feedbackRepo, publisher,
	)

	// Handlers.
	authH := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	hallH := handler.NewHallHandler(hallRepo)
	resourceH := handler.NewResourceHandler(resourceRepo)
	reservationH := handler.NewReservationHandler(svc, reservationRepo, feedbackRepo)
	adminH := handler.NewAdminReservationHandler(svc, reservationRepo, feedbackRepo, userRepo)
	notificationH := handler.NewNotificationHandler(notificationRepo)

	e := echo.New()

	// Redis-backed rate limiting and response caching degrade to
	// pass-throughs when Redis is unreachable.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and caching disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, hallH, resourceH)
	router.RegisterUser(e, reservationH, notificationH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, hallH, resourceH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
