package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/news-api/api/swagger"
	"github.com/noah-isme/news-api/internal/handler"
	"github.com/noah-isme/news-api/internal/middleware"
	"github.com/noah-isme/news-api/internal/repository"
	"github.com/noah-isme/news-api/internal/service"
	"github.com/noah-isme/news-api/migrations"
	"github.com/noah-isme/news-api/pkg/cache"
	"github.com/noah-isme/news-api/pkg/config"
	"github.com/noah-isme/news-api/pkg/database"
	"github.com/noah-isme/news-api/pkg/errreport"
	"github.com/noah-isme/news-api/pkg/jobs"
	"github.com/noah-isme/news-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/news-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/news-api/pkg/middleware/requestid"
	"github.com/noah-isme/news-api/pkg/oauth/github"
	"github.com/noah-isme/news-api/pkg/password"
	"github.com/noah-isme/news-api/pkg/storage"
	"github.com/noah-isme/news-api/pkg/token"
)

// @title News API
// @version 1.0.0
// @description News publishing backend with JWT sessions, comments and weekly digests
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(ctx, db.DB); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logr.Info("migrations applied")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	userRepo := repository.NewUserRepository(db)
	newsRepo := repository.NewNewsRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	sessionRepo := repository.NewSessionCacheRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	reporter := errreport.NewZapReporter(logr)

	codec, err := token.NewCodec(token.Config{
		Secret:     cfg.JWT.Secret,
		Algorithm:  cfg.JWT.Algorithm,
		AccessTTL:  cfg.JWT.Expiration,
		RefreshTTL: cfg.JWT.RefreshExpiration,
	})
	if err != nil {
		return fmt.Errorf("init token codec: %w", err)
	}

	authDeps := service.AuthDeps{
		Users:    userRepo,
		Sessions: sessionRepo,
		Hasher: password.NewHasher(password.Params{
			Time:     cfg.Password.Time,
			MemoryKB: cfg.Password.MemoryKB,
			Threads:  cfg.Password.Threads,
		}),
		Tokens:   codec,
		Metrics:  metricsSvc,
		Reporter: reporter,
	}
	if cfg.GitHub.Enabled() {
		authDeps.GitHub = github.NewProvider(github.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURI:  cfg.GitHub.RedirectURI,
		})
	}
	authSvc := service.NewAuthService(authDeps, validate, logr)
	accessSvc := service.NewAccessService(userRepo, sessionRepo, codec, cfg.Cache.FreshnessWindow, metricsSvc, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.FreshnessWindow, logr, true)

	worker := service.NewNotificationWorker(service.NewLogDeliverer(logr), metricsSvc, logr)
	queue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Notifications.Workers,
		MaxRetries:  cfg.Notifications.MaxRetries,
		BackoffBase: cfg.Notifications.BackoffBase,
		BackoffMax:  cfg.Notifications.BackoffMax,
		OnFailure:   worker.OnFailure,
		Logger:      logr,
	})
	queue.Start(context.Background())
	defer queue.Stop()
	notifier := service.NewNotificationService(userRepo, queue, logr)

	newsSvc := service.NewNewsService(newsRepo, cacheSvc, accessSvc, notifier, metricsSvc, cfg.Cache.FreshnessWindow, validate, logr)
	commentSvc := service.NewCommentService(commentRepo, newsRepo, accessSvc, reporter, validate, logr)
	userSvc := service.NewUserService(userRepo, logr)

	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Users:    handler.NewUserHandler(userSvc),
		News:     handler.NewNewsHandler(newsSvc),
		Comments: handler.NewCommentHandler(commentSvc),
		Metrics: handler.NewMetricsHandler(metricsSvc, cfg.Metrics.ExportPath, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(sessionRepo.Ping),
		}, logr),
	}

	if cfg.Digest.Enabled {
		scheduler, digestHandler, err := setupDigest(cfg, newsSvc, metricsSvc, logr)
		if err != nil {
			return err
		}
		handlers.Digest = digestHandler
		scheduler.Start()
		defer scheduler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, accessSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupDigest(cfg *config.Config, news *service.NewsService, metrics *service.MetricsService, logr *zap.Logger) (*service.DigestScheduler, *handler.DigestHandler, error) {
	loc, err := time.LoadLocation(cfg.Digest.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("load digest timezone: %w", err)
	}
	store, err := storage.NewLocalStorage(cfg.Digest.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init digest storage: %w", err)
	}
	signer := storage.NewSigner(cfg.Digest.SignedURLSecret, cfg.Digest.SignedURLTTL)

	digestSvc := service.NewDigestService(news, store, signer, metrics, service.DigestConfig{
		Location:  loc,
		APIPrefix: cfg.APIPrefix,
		Retention: cfg.Digest.Retention,
	}, logr)

	scheduler, err := service.NewDigestScheduler(cfg.Digest.Schedule, loc, digestSvc, logr)
	if err != nil {
		return nil, nil, fmt.Errorf("schedule digest: %w", err)
	}
	return scheduler, handler.NewDigestHandler(digestSvc), nil
}
