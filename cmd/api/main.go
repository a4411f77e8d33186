package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/cache"
	"github.com/pubshark/backend/internal/config"
	"github.com/pubshark/backend/internal/database"
	"github.com/pubshark/backend/internal/handlers"
	"github.com/pubshark/backend/internal/logger"
	"github.com/pubshark/backend/internal/mailer"
	"github.com/pubshark/backend/internal/middleware"
	"github.com/pubshark/backend/internal/server"
	"github.com/pubshark/backend/internal/service"
	"github.com/pubshark/backend/internal/store"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := database.New(cfg.DB, log.Named("db"))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var feed cache.Feed = cache.Nop{}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		pong, err := rdb.Ping(ctx).Result()
		if err != nil {
			return err
		}
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr), zap.String("pong", pong))
		feed = cache.NewRedisFeed(rdb, cfg.Notifications.FeedCacheTTL)
	}

	var mail mailer.Mailer = mailer.NewLog(log.Named("mailer"))
	if cfg.SMTP.Enabled {
		mail = mailer.NewSMTP(cfg.SMTP)
	}

	policy, err := auth.NewPolicy()
	if err != nil {
		return err
	}
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var bg service.Background
	gormDB := db.GetDB()
	svc := service.New(service.Deps{
		Users:           store.NewUserStore(gormDB),
		Articles:        store.NewArticleStore(gormDB),
		Comments:        store.NewCommentStore(gormDB),
		Notifications:   store.NewNotificationStore(gormDB),
		Subscriptions:   store.NewSubscriptionStore(gormDB),
		Feed:            feed,
		Mailer:          mail,
		Policy:          policy,
		Tokens:          tokens,
		Log:             log,
		NotificationTTL: cfg.Notifications.TTL,
		PublicURL:       cfg.PublicURL,
		Async:           bg.Go,
	})

	if cfg.Admin.Configured() {
		if _, err := svc.Accounts.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			return err
		}
	}

	go svc.Notifications.RunJanitor(ctx, cfg.Notifications.PurgeInterval)

	srv := server.New(
		cfg.HTTP,
		db,
		handlers.NewHandler(svc),
		middleware.NewAuthenticator(tokens, svc.Accounts),
		policy,
		log.Named("http"),
	).HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
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

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := bg.Wait(shutdownCtx); err != nil {
		log.Warn("background jobs still running at shutdown", zap.Error(err))
	}
	return nil
}
