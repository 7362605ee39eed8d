package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clientsure/backend/internal/config"
	"github.com/clientsure/backend/internal/db"
	adminapi "github.com/clientsure/backend/internal/http/api/admin"
	"github.com/clientsure/backend/internal/http/api/front"
	"github.com/clientsure/backend/internal/http/api/webhook"
	"github.com/clientsure/backend/internal/ledger"
	"github.com/clientsure/backend/internal/lifecycle"
	"github.com/clientsure/backend/internal/notify"
	"github.com/clientsure/backend/internal/ratelimit"
	"github.com/clientsure/backend/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	conn, errOpen := openDatabase(cfg)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with the ledger engine and the daily sweep
// scheduler, and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, errOpen := openDatabase(cfg)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errAdmin := EnsureAdmin(conn); errAdmin != nil {
		return errAdmin
	}

	loc, errLoc := time.LoadLocation(cfg.Schedule.Timezone)
	if errLoc != nil {
		return fmt.Errorf("app: invalid timezone %q: %w", cfg.Schedule.Timezone, errLoc)
	}

	engine := ledger.NewEngine(conn)
	engine.SetBonusValidity(cfg.Ledger.BonusValidity)

	recorder := notify.NewRecorder(conn, nil)
	sweeper := lifecycle.NewSweeper(conn, recorder, loc)

	scheduler, errSched := lifecycle.NewScheduler(sweeper, cfg.Schedule.RefreshAt, cfg.Schedule.LifecycleAt, loc)
	if errSched != nil {
		return errSched
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	limiter := buildLimiter(cfg)
	settler := settlement.NewHandler(conn, recorder)

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	adminapi.RegisterAdminRoutes(router, conn, cfg.JWT, engine, sweeper, cfg.CronSecret)
	front.RegisterFrontRoutes(router, conn, cfg.JWT, engine, limiter, cfg.Ledger.SpendLimit)
	webhook.RegisterWebhookRoutes(router, settler, cfg.Webhook.Secret)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("app: listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	dsn, errDSN := cfg.DSN()
	if errDSN != nil {
		return nil, errDSN
	}
	return db.Open(dsn)
}

// buildLimiter picks the Redis-backed limiter when an address is configured,
// falling back to the in-process one.
func buildLimiter(cfg config.Config) ratelimit.Limiter {
	if addr := cfg.RedisAddr; addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		log.Infof("app: rate limiting via redis at %s", addr)
		return ratelimit.NewRedisLimiter(client, "clientsure")
	}
	return ratelimit.NewMemoryLimiter()
}
