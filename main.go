package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"green-route-server/config"
	"green-route-server/graphcache"
	"green-route-server/handlers"
	"green-route-server/logger"
	"green-route-server/refresh"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		logger.L().Error("server_exit", "err", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		l.Debug("dotenv_skipped", "err", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := graphcache.New(graphcache.Options{
		NetworkFile: cfg.NetworkFile,
		Sources:     cfg.Sources(),
		Settings:    cfg.Features,
		Store:       store,
	})

	// the first build failing is fatal; later refresh failures are not
	schedErr := make(chan error, 1)
	go func() {
		schedErr <- refresh.New(cache, cfg.RefreshInterval).Run(ctx)
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handlers.RequestID())
	r.Use(logger.GinAccess(l))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(handlers.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	handlers.NewRoutingHandler(cache, cfg.RequestTimeout, l).RegisterRoutes(r)

	api := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	adminRouter := mux.NewRouter()
	handlers.NewAdminHandler(cache, cfg.AdminToken, 5*time.Minute, l).RegisterRoutes(adminRouter)
	admin := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           logger.AccessMiddleware(l)(adminRouter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		l.Info("listener_started", "name", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%s listener: %w", name, err)
		}
	}
	go serve("api", api)
	if cfg.AdminAddr != "" {
		go serve("admin", admin)
	}

	var runErr error
	select {
	case <-ctx.Done():
		l.Info("shutdown_requested")
	case err := <-schedErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("initial snapshot build: %w", err)
		}
	case runErr = <-serveErr:
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		l.Warn("api_shutdown_failed", "err", err)
	}
	if cfg.AdminAddr != "" {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			l.Warn("admin_shutdown_failed", "err", err)
		}
	}
	l.Info("server_stopped")
	return runErr
}

func openStore(ctx context.Context, cfg config.Config, l *slog.Logger) (graphcache.WeightStore, func(), error) {
	switch cfg.WeightCache {
	case config.WeightCacheRedis:
		client, err := graphcache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// scoring from the layer files still works without redis
			l.Warn("redis_unavailable", "addr", cfg.RedisAddr, "err", err)
			return graphcache.NopStore{}, func() {}, nil
		}
		return graphcache.NewRedisStore(client, cfg.RedisPrefix, cfg.RedisTTL), func() { client.Close() }, nil
	case config.WeightCacheNone:
		return graphcache.NopStore{}, func() {}, nil
	default:
		return graphcache.NewFileStore(cfg.WeightCacheFile), func() {}, nil
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", handlers.RequestIDHeader}
	c.ExposeHeaders = []string{handlers.RequestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
