package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"

	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/api/handlers"
	"github.com/postpilothq/postpilot/internal/api/middleware"
	job "github.com/postpilothq/postpilot/internal/jobs"
	"github.com/postpilothq/postpilot/internal/publisher"
	"github.com/postpilothq/postpilot/internal/queue"
	"github.com/postpilothq/postpilot/internal/ratelimit"
	"github.com/postpilothq/postpilot/internal/repository"
	"github.com/postpilothq/postpilot/internal/scheduler"
	"github.com/postpilothq/postpilot/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer redisClient.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	personaRepo := repository.NewPersonaRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	publishAttemptRepo := repository.NewPublishAttemptRepository(db)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	postService := service.NewPostService(db, postRepo, scheduleRepo, personaRepo, mediaAssetRepo, postMediaRepo, r2Service)
	variantService := service.NewVariantService(*cfg, variantRepo, postRepo, personaRepo, userRepo)
	scheduleService := service.NewScheduleService(scheduleRepo, postRepo, variantRepo, socialAccountRepo, publishAttemptRepo)
	platformService := service.NewPlatformService(*cfg, socialAccountRepo)
	personaService := service.NewPersonaService(personaRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)
	couponService := service.NewCouponService(couponRepo)
	subscriptionService := service.NewSubscriptionService(userRepo, subscriptionRepo)

	registry := publisher.NewRegistry(
		publisher.NewTwitterPublisher(*cfg),
		publisher.NewThreadsPublisher(*cfg),
		publisher.NewYoutubePublisher(*cfg),
	)

	dispatcher := scheduler.NewDispatcher(scheduleRepo, postRepo, variantRepo, socialAccountRepo,
		postMediaRepo, mediaAssetRepo, publishAttemptRepo, registry)
	dispatcher.SetEnqueuer(queue.NewEnqueuer(client))

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)
	rateLimitStore := ratelimit.NewRedisStore(redisClient)

	auth := handlers.NewAuthHandler(*cfg, authService)
	loginLimit := middleware.RateLimit(middleware.RateLimitPolicy{Name: "login", Window: time.Minute, Limit: 10}, rateLimitStore)
	app.Get("/login", loginLimit, auth.Login)
	app.Get("/login/callback", loginLimit, auth.LoginCallbackHandler)
	app.Get("/logout", auth.Logout)

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	payment := handlers.NewPaymentHandler(*cfg, subscriptionService)
	app.Post("/webhooks/lemonsqueezy", payment.PaymentWebhook)

	api := app.Group("/api")
	api.Use(middleware.RateLimit(middleware.RateLimitPolicy{Name: "api", Window: time.Minute, Limit: 120}, rateLimitStore))
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService, subscriptionService)
	api.Get("/user/info", user.GetUser)
	api.Get("/user/subscription", user.GetSubscription)
	api.Post("/user/remove", user.RemoveUser)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveKey)

	post := handlers.NewPostHandler(postService, variantService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)
	api.Post("/variants/generate", post.GenerateVariants)
	api.Post("/variants/create", post.CreateVariant)
	api.Get("/variants", post.ListVariants)
	api.Post("/variants/remove", post.RemoveVariant)

	schedule := handlers.NewScheduleHandler(scheduleService, client)
	api.Post("/schedules/create", schedule.CreateSchedule)
	api.Get("/schedules", schedule.ListSchedules)
	api.Get("/schedules/attempts", schedule.ListAttempts)
	api.Post("/schedules/cancel", schedule.CancelSchedule)

	persona := handlers.NewPersonaHandler(personaService)
	api.Post("/personas/create", persona.CreatePersona)
	api.Get("/personas", persona.ListPersonas)
	api.Post("/personas/update", persona.UpdatePersona)
	api.Post("/personas/remove", persona.RemovePersona)

	coupon := handlers.NewCouponHandler(couponService)
	api.Post("/coupons/redeem", coupon.RedeemCoupon)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, platformService)

	//queue
	queueW := queue.NewQueue(dispatcher)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", func() { dispatcher.Sweep(context.Background()) })
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDispatchSchedule, queueW.HandleDispatchScheduleTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
