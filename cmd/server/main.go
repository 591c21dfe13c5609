// Package main runs the event Q&A HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/connect-event/backend/config"
	"github.com/connect-event/backend/internal/auth"
	"github.com/connect-event/backend/internal/engagement"
	"github.com/connect-event/backend/internal/i18n"
	"github.com/connect-event/backend/internal/middleware"
	"github.com/connect-event/backend/internal/models"
	"github.com/connect-event/backend/internal/questions"
	"github.com/connect-event/backend/internal/talks"
	"github.com/connect-event/backend/pkg/database"
	"github.com/connect-event/backend/pkg/queue"
	"github.com/connect-event/backend/pkg/redis"
	"github.com/connect-event/backend/pkg/response"
	"github.com/connect-event/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: int32(cfg.Database.MaxConns)}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Server.RunMigrations {
		if err := database.Migrate(cfg.Database.DSN(), logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	loc, err := cfg.Voting.Location()
	if err != nil {
		logger.Fatal("event timezone", zap.Error(err))
	}
	translator := i18n.NewTranslator(cfg.Voting.DefaultLocale, loc, logger)

	// Ranking exports need Redis for the queue and S3 for presigned downloads; both are optional.
	var jobQueue *queue.Queue
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, ranking exports disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}

	var s3Client *storage.S3
	if cfg.AWS.ExportsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Endpoint:             cfg.AWS.Endpoint,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Talks and voting window override
	grace := cfg.Voting.Grace()
	talkRepo := talks.NewRepository(pool)
	talkHandler := talks.NewHandler(talkRepo, translator, grace, logger)

	// Questions and votes
	questionRepo := questions.NewRepository(pool)
	questionSvc := questions.NewService(questionRepo, talkRepo, questions.Options{
		VoteBudget: cfg.Voting.Budget,
		Grace:      &grace,
	}, logger)
	questionHandler := questions.NewHandler(questionSvc, translator, logger)

	// Engagement ranking
	var enqueuer engagement.Enqueuer
	if jobQueue != nil {
		enqueuer = jobQueue
	}
	var presigner engagement.Presigner
	if s3Client != nil {
		presigner = s3Client
	}
	engagementRepo := engagement.NewRepository(pool)
	engagementSvc := engagement.NewService(engagementRepo, questionSvc, enqueuer, presigner, logger)
	engagementHandler := engagement.NewHandler(engagementSvc, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		exports := "disabled"
		if rdb != nil {
			exports = "ok"
			if err := rdb.Healthy(c.Request.Context()); err != nil {
				exports = "degraded"
			}
		}
		response.OK(c, gin.H{"status": "ok", "exports": exports})
	})

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Public reads; a token, when present, adds voted_by_me and staff visibility.
	public := router.Group("")
	public.Use(middleware.OptionalJWT(jwtService))
	{
		public.GET("/talks/:id/questions", questionHandler.List)
		public.GET("/talks/:id/voting-window", talkHandler.GetWindow)
		public.GET("/questions/:id", questionHandler.Get)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		// Talks
		api.POST("/talks/:id/questions", questionHandler.Submit)
		api.GET("/talks/:id/votes/me", questionHandler.MyVotes)
		api.PUT("/talks/:id/voting-window", middleware.RequireRole(models.RoleAdmin), talkHandler.SetWindow)
		api.DELETE("/talks/:id/voting-window", middleware.RequireRole(models.RoleAdmin), talkHandler.ClearWindow)

		// Questions
		api.PUT("/questions/:id/vote", questionHandler.ToggleVote)
		api.PATCH("/questions/:id/status", middleware.RequireRole(models.RoleAdmin), questionHandler.Moderate)
		api.PUT("/questions/:id/answer", middleware.RequireRole(models.RoleAdmin, models.RoleSpeaker), questionHandler.Answer)
		api.DELETE("/questions/:id", questionHandler.Delete)

		// Participants
		api.GET("/participants/:id/questions", middleware.SelfOrAdmin(), questionHandler.ListByParticipant)
		api.GET("/participants/:id/engagement", middleware.SelfOrAdmin(), engagementHandler.ForParticipant)

		// Ranking (raffle)
		api.GET("/ranking", middleware.RequireRole(models.RoleAdmin), engagementHandler.Ranking)
		api.POST("/ranking/exports", middleware.RequireRole(models.RoleAdmin), engagementHandler.RequestExport)
		api.GET("/ranking/exports/:id", middleware.RequireRole(models.RoleAdmin), engagementHandler.GetExport)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.Int("vote_budget", cfg.Voting.Budget),
			zap.Duration("voting_grace", cfg.Voting.Grace()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
