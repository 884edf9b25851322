package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/indexsync"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := config.GetLogger()

	// SIGTERM starts a graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// The port opens before the DB is reachable; /api answers 503 until app.init.
	app := &App{}
	srv := &http.Server{
		Addr:    ":" + config.HTTPPort(),
		Handler: newRouter(app, logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	dispatcher := bootstrap(sigCtx, app, logger)
	logger.WithFields(logrus.Fields{"addr": srv.Addr}).Info("server.ready")

	select {
	case <-sigCtx.Done():
		logger.Info("server.shutdown.signal")
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdown(srv, dispatcher, logger)
}

func newRouter(app *App, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(corsMiddleware())
	if rl := config.RateLimit(); rl.Enabled {
		r.Use(NewRateLimiter(rl.Limit, rl.Window).RateLimitMiddleware)
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	registerRoutes(r, app)
	return r
}

// bootstrap connects storage, migrates, starts the reindex dispatcher and marks the app ready.
func bootstrap(ctx context.Context, app *App, logger *logrus.Logger) *indexsync.Dispatcher {
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()

	if config.SkipMigrations() {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	} else {
		models.MigrateTable()
	}

	dispatcher := indexsync.NewDispatcher(db, logger, indexsync.NewPublisherFromEnv(ctx, logger))
	dispatcher.Start()
	app.init(db, logger, dispatcher)
	return dispatcher
}

// shutdown drains HTTP before the dispatcher so no reindex job is queued after Stop.
func shutdown(srv *http.Server, dispatcher *indexsync.Dispatcher, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	dispatcher.Stop()
	config.ClosePubSub()

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := config.GetDB().DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("server.shutdown.done")
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins, corsConfig.AllowAllOrigins = config.CORSOrigins()
	if corsConfig.AllowOrigins == nil {
		corsConfig.AllowOrigins = []string{}
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-tenant-id", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "x-correlation-id")
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return cors.New(corsConfig)
}

// customErrorLogger logs handler errors attached with c.Error.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		logger.WithFields(config.ContextFields(c.Request.Context())).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Error(c.Errors.String())
	}
}
