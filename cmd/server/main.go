package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/reseich/reseich-api/internal/auth"
	"github.com/reseich/reseich-api/internal/chat"
	"github.com/reseich/reseich-api/internal/config"
	"github.com/reseich/reseich-api/internal/credits"
	"github.com/reseich/reseich-api/internal/email"
	"github.com/reseich/reseich-api/internal/events"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/reseich/reseich-api/internal/marketplace"
	"github.com/reseich/reseich-api/internal/metrics"
	"github.com/reseich/reseich-api/internal/ratelimit"
	"github.com/reseich/reseich-api/internal/research"
	"github.com/reseich/reseich-api/internal/schema"
	"github.com/reseich/reseich-api/internal/sei"
	"github.com/reseich/reseich-api/internal/storage/pg"
	"github.com/reseich/reseich-api/internal/stripe"
	"github.com/reseich/reseich-api/internal/upload"
	"github.com/reseich/reseich-api/internal/users"
	"github.com/reseich/reseich-api/internal/workflow"
	"github.com/rs/cors"
)

func fatal(log *logger.Logger, msg string, err error) {
	log.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat, cfg.AppEnv))

	log.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// Initialize database.
	db, err := pg.InitDatabase(startCtx, cfg)
	if err != nil {
		fatal(log, "failed to initialize database", err)
	}
	log.Info("database ready", slog.Any("migrations_applied", db.Migrated))
	store := db.Store()

	// Demo limiter: Redis when configured, the demo_usage table otherwise.
	var (
		limiter     ratelimit.DemoLimiter
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = ratelimit.NewRedisClient(startCtx, cfg.RedisURL)
		if err != nil {
			fatal(log, "failed to connect to redis", err)
		}
		limiter = ratelimit.NewRedisDemoLimiter(redisClient, cfg.DemoDailyLimit, cfg.DemoWindow)
		log.Info("demo limiter backed by redis")
	} else {
		limiter = ratelimit.NewPostgresDemoLimiter(db.Queries, cfg.DemoDailyLimit, cfg.DemoWindow)
		log.Info("demo limiter backed by postgres")
	}

	// Status events: NATS when configured so every instance sees every update.
	var (
		bus events.Bus = events.NewLocalBus()
		nc  *nats.Conn
	)
	if cfg.NatsURL != "" {
		nc, err = events.Connect(cfg.NatsURL, log)
		if err != nil {
			fatal(log, "failed to connect to nats", err)
		}
		bus = events.NewNATSBus(nc, log)
	}

	ethClient, err := sei.Dial(startCtx, cfg.SEIRPCURLs, log)
	if err != nil {
		fatal(log, "failed to connect to SEI", err)
	}
	verifier := sei.NewVerifier(ethClient, sei.VerifierConfig{
		ChainID:      cfg.SEIChainID,
		ReceiptWait:  cfg.SEIReceiptTimeout,
		PollInterval: cfg.SEIReceiptPoll,
	})

	objects, err := upload.NewS3Store(startCtx, cfg)
	if err != nil {
		fatal(log, "failed to initialize object storage", err)
	}

	recorder := metrics.Recorder{}

	// Workflow engine
	signer := auth.NewCallbackSigner(cfg.WorkflowCallbackSecret, cfg.WorkflowCallbackTTL)
	callbacks := workflow.NewCallbackURLs(cfg.PublicBaseURL, signer)
	dispatcher := workflow.NewDispatcher(
		workflow.NewClient(cfg.WorkflowWebhookURL, time.Duration(cfg.WorkflowTimeoutSeconds)*time.Second),
		workflow.DispatcherConfig{
			Workers:    cfg.WorkflowWorkerPoolSize,
			BufferSize: cfg.WorkflowBufferSize,
			Timeout:    time.Duration(cfg.WorkflowTimeoutSeconds) * time.Second,
		},
		recorder,
		log,
	)

	// Initialize services
	creditsService := credits.NewService(store, verifier, cfg.Pricing, cfg.SEITreasury, recorder, log)
	marketplaceService := marketplace.NewService(store, verifier, recorder, log)
	researchService := research.NewService(
		store,
		limiter,
		dispatcher,
		callbacks,
		marketplaceService,
		bus,
		recorder,
		research.Config{
			Pricing:    cfg.Pricing,
			MailFrom:   cfg.MailFrom,
			StaleAfter: cfg.ResearchStaleAfter,
		},
		log,
	)
	chatService := chat.NewService(store, dispatcher, callbacks, recorder, log)
	stripeService := stripe.NewService(cfg, creditsService, log)
	usersService := users.NewService(store, log)

	// Initialize handlers
	researchHandler := research.NewHandler(researchService, log)
	creditsHandler := credits.NewHandler(creditsService, log)
	marketplaceHandler := marketplace.NewHandler(marketplaceService, log)
	chatHandler := chat.NewHandler(chatService, log)
	emailHandler := email.NewHandler(dispatcher, cfg.MailFrom, recorder, log)
	uploadHandler := upload.NewHandler(objects, log)
	stripeHandler := stripe.NewHandler(stripeService, log)
	seiHandler := sei.NewHandler(verifier, log)
	usersHandler := users.NewHandler(usersService, log)
	schemas := schema.NewRegistry()

	var expiry *research.ExpiryJob
	if cfg.ResearchExpiryEnabled {
		expiry, err = research.NewExpiryJob(cfg.ResearchExpirySpec, researchService, log)
		if err != nil {
			fatal(log, "failed to schedule research expiry", err)
		}
		expiry.Start()
		log.Info("research expiry scheduled", slog.String("schedule", cfg.ResearchExpirySpec))
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(log))
	router.Use(metrics.Middleware())
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		fatal(log, "invalid trusted proxies", err)
	}

	stopCleanup := make(chan struct{})
	if cfg.RateLimitEnabled {
		throttle := ratelimit.NewIPThrottle(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
		throttle.StartCleanup(10*time.Minute, stopCleanup)
		router.Use(throttle.Middleware())
		log.Info("per-IP throttle enabled",
			slog.Float64("rps", cfg.RateLimitRPS),
			slog.Int("burst", cfg.RateLimitBurst))
	} else {
		log.Warn("per-IP throttle disabled")
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		api.GET("/ip", auth.IPHandler)

		researchRoutes := api.Group("/research")
		{
			researchRoutes.POST("/submit", researchHandler.Submit)
			researchRoutes.GET("", researchHandler.List)
			researchRoutes.GET("/:id", researchHandler.Read)
			researchRoutes.GET("/status/:id", researchHandler.GetStatus)
			researchRoutes.GET("/status/:id/stream", researchHandler.Stream)
			researchRoutes.POST("/status/:id",
				auth.RequireCallbackToken(signer, auth.CallbackResearch, "id"),
				researchHandler.UpdateStatus)
		}

		api.GET("/demo/usage", researchHandler.DemoUsage)

		usersRoutes := api.Group("/users")
		{
			usersRoutes.GET("/email-settings", usersHandler.GetEmailSettings)
			usersRoutes.POST("/email-settings", usersHandler.UpdateEmailSettings)
		}

		creditsRoutes := api.Group("/credits")
		{
			creditsRoutes.POST("/purchase", creditsHandler.Purchase)
			creditsRoutes.GET("/balance", creditsHandler.Balance)
			creditsRoutes.GET("/transactions", creditsHandler.Transactions)
			creditsRoutes.GET("/packages", creditsHandler.Packages)
		}

		marketplaceRoutes := api.Group("/marketplace")
		{
			marketplaceRoutes.POST("/listings", marketplaceHandler.CreateListing)
			marketplaceRoutes.GET("/listings", marketplaceHandler.ListListings)
		}

		api.POST("/payments/sei", marketplaceHandler.PaySEI)

		chatRoutes := api.Group("/chat")
		{
			chatRoutes.POST("/send", chatHandler.Send)
			chatRoutes.GET("/response/:id", chatHandler.GetReply)
			chatRoutes.POST("/response/:id",
				auth.RequireCallbackToken(signer, auth.CallbackChat, "id"),
				chatHandler.StoreReply)
			chatRoutes.GET("/sessions/:id", chatHandler.History)
		}

		api.POST("/email/send", emailHandler.Send)
		api.POST("/upload/file", uploadHandler.Upload)

		seiRoutes := api.Group("/sei")
		{
			seiRoutes.GET("/balance/:wallet", seiHandler.GetBalance)
			seiRoutes.GET("/gas-estimate", seiHandler.EstimateGas)
		}

		stripeRoutes := api.Group("/stripe")
		{
			stripeRoutes.POST("/checkout", stripeHandler.CreateCheckoutSession)
			stripeRoutes.POST("/webhook", stripeHandler.HandleWebhook)
		}

		api.GET("/schemas", schemas.List)
		api.GET("/schemas/:name", schemas.Show)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", auth.WalletHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("reseich api listening", slog.String("addr", srv.Addr), slog.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "failed to start server", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	close(stopCleanup)
	if expiry != nil {
		expiry.Stop(ctx)
	}

	// Deliver queued webhooks before the pool goes away.
	dispatcher.Shutdown()
	log.Info("workflow dispatcher drained", slog.Int64("dropped", dispatcher.Dropped()))

	if nc != nil {
		if err := nc.Drain(); err != nil {
			log.Warn("failed to drain nats", slog.String("error", err.Error()))
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	ethClient.Close()
	if err := db.Close(); err != nil {
		log.Warn("failed to close database", slog.String("error", err.Error()))
	}

	log.Info("server exited")
}
