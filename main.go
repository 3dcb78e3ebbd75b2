package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/danielhkuo/votegate/cliparse"
	"github.com/danielhkuo/votegate/db"
	"github.com/danielhkuo/votegate/logging"
	"github.com/danielhkuo/votegate/metrics"
	"github.com/danielhkuo/votegate/middleware"
	"github.com/danielhkuo/votegate/polls"
	"github.com/danielhkuo/votegate/ratelimit"
	"github.com/danielhkuo/votegate/router"
)

func main() {
	// A .env file is optional; real environment variables win
	_ = godotenv.Load()

	logger, err := logging.New("votegate")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		logger.Fatal("error parsing flags", zap.Error(err))
	}

	metrics.Register()

	// Connect to the database
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		logger.Fatal("schema creation failed", zap.Error(err))
	}
	if err := polls.NewStore(dbConn).Ensure(context.Background(), cfg.PollID); err != nil {
		logger.Fatal("poll seeding failed", zap.Error(err))
	}
	logger.Info("database schema ready", zap.String("type", cfg.DatabaseType), zap.String("poll_id", cfg.PollID))

	limiter := newLimiter(cfg, logger)

	// Create router
	mux, err := router.NewRouter(dbConn, cfg, limiter, logger)
	if err != nil {
		logger.Fatal("router setup failed", zap.Error(err))
	}

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			server.Close()
		}
	}()

	// Start server
	logger.Info("listening", zap.Int("port", cfg.Port))
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server closed", zap.Error(err))
	} else {
		logger.Info("server closed")
	}
}

// newLimiter prefers Redis so counters are shared between instances, and
// falls back to process memory when Redis is not configured or unreachable
func newLimiter(cfg cliparse.Config, logger *zap.Logger) ratelimit.Limiter {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory rate limiter; counters are per instance")
		return ratelimit.NewMemory(cfg.RateLimitWindow, cfg.RateLimitMax)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ratelimit.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory rate limiter", zap.Error(err))
		return ratelimit.NewMemory(cfg.RateLimitWindow, cfg.RateLimitMax)
	}

	logger.Info("using redis rate limiter")
	return ratelimit.NewRedis(client, cfg.RateLimitWindow, cfg.RateLimitMax)
}
