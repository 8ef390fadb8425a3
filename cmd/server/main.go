package main

import (
	"alcyxob/fitness-sync/internal/api" // Import API package
	"alcyxob/fitness-sync/internal/config"
	"alcyxob/fitness-sync/internal/jobs"
	"alcyxob/fitness-sync/internal/localstore"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/metrics"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/remote/mongo"
	"alcyxob/fitness-sync/internal/repository"
	"alcyxob/fitness-sync/internal/service"
	"alcyxob/fitness-sync/internal/session"
	"alcyxob/fitness-sync/internal/storage"
	"alcyxob/fitness-sync/internal/syncengine"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title Fitness Sync API
// @version 1.0
// @description Local-first workout tracking: completions, schedules and progress photos
// @description are recorded immediately and synced to the remote store in the background.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logging.Fatal().Err(err).Msg("could not load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logging.Info().Str("address", cfg.Server.Address).Msg("starting fitness sync server")

	if cfg.JWT.Secret == "" {
		logging.Fatal().Msg("jwt.secret (JWT_SECRET) must be set")
	}

	// --- Metrics ---
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsManager := metrics.NewManager("fitness", "sync_server", promRegistry)

	// --- Database Connection ---
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	dbClient, err := mongo.ConnectDB(connectCtx, cfg.Database.URI)
	cancelConnect()
	if err != nil {
		logging.Fatal().Err(err).Msg("could not connect to MongoDB")
	}
	defer func() {
		logging.Info().Msg("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logging.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)

	// --- Ensure Indexes ---
	go func() { // Run index creation in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB)
	}()

	// The breaker makes pushes fail fast while MongoDB is down; actions stay pending.
	remoteStore := remote.NewBreaker(mongo.NewStore(appDB), remote.BreakerSettings{
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	})

	// --- Local Store ---
	localStore, err := localstore.Open(localstore.Options{
		Path:       cfg.Local.Path,
		InMemory:   cfg.Local.InMemory,
		SyncWrites: cfg.Local.SyncWrites,
	})
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Local.Path).Msg("could not open local store")
	}
	defer func() {
		if err := localStore.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close local store")
		}
	}()

	// --- Initialize Storage ---
	storageCtx, cancelStorage := context.WithTimeout(context.Background(), 15*time.Second)
	fileStorage, err := storage.NewS3Storage(storageCtx, cfg.S3)
	cancelStorage()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize S3 storage")
	}

	// --- Initialize Repositories & Services ---
	userRepo := repository.NewUserRepository(remoteStore)
	workoutRepo := repository.NewWorkoutRepository(remoteStore)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)

	sessions := session.NewManager(remoteStore, localStore, fileStorage, userRepo, session.Options{
		Engine: syncengine.Options{
			RetryDelay:  cfg.Sync.RetryDelay,
			MaxRetries:  cfg.Sync.MaxRetries,
			PushTimeout: cfg.Sync.PushTimeout,
		},
		WeeklyTarget:  cfg.Sync.WeeklyTarget,
		RetentionDays: cfg.Sync.RetentionDays,
		IdleTimeout:   cfg.Sync.SessionIdleTimeout,
		Metrics:       metricsManager,
	})

	maintenance, err := jobs.NewMaintenance(sessions, jobs.Schedules{
		CatchUp:   cfg.Sync.CatchUpSchedule,
		Prune:     cfg.Sync.PruneSchedule,
		IdleCheck: cfg.Sync.IdleCheckSchedule,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid maintenance schedule")
	}
	maintenance.Start()

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger())

	api.SetupRoutes(router, api.Dependencies{
		JWTSecret:   cfg.JWT.Secret,
		AuthService: authService,
		WorkoutRepo: workoutRepo,
		Sessions:    sessions,
		Metrics:     metricsManager,
		Gatherer:    promRegistry,
	})

	// --- Start HTTP Server ---
	// No WriteTimeout: /events holds its response open.
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()
	logging.Info().Str("address", cfg.Server.Address).Msg("server listening")

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info().Msg("shutting down server")

	maintenance.Stop()

	// Closing the sessions cancels in-flight pushes (they stay pending for the next
	// start) and ends open /events streams, so Shutdown only waits on short requests.
	sessions.Close()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logging.Error().Err(err).Msg("server forced to shutdown")
	}

	logging.Info().Msg("server exiting")
}
