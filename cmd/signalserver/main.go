// Command signalserver is the reference HTTP long-poll signaling server: an
// append-only event log exposed over the wire contract meshlink's
// signaling.HTTPAdapter speaks, backed by either an in-process memory log or
// Redis.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshlink/meshlink/internal/obslog"
	"github.com/meshlink/meshlink/signaling"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	redisAddr := flag.String("redis-addr", "", "Redis address; when empty, events are kept in an in-process log")
	redisPassword := flag.String("redis-password", "", "Redis password")
	redisDB := flag.Int("redis-db", 0, "Redis logical database")
	keyPrefix := flag.String("redis-key-prefix", "meshlink", "Redis key prefix for event logs")
	dev := flag.Bool("dev", false, "use a development logger instead of production JSON logging")
	flag.Parse()

	logger, err := buildLogger(*dev)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	obslog.SetDefault(logger)

	adapter, err := buildAdapter(*redisAddr, *redisPassword, *redisDB, *keyPrefix)
	if err != nil {
		logger.Fatal("failed to build signaling adapter", zap.Error(err))
	}
	defer adapter.Close()

	router := newRouter(adapter, logger.Named("http"))

	srv := &http.Server{
		Addr:    *addr,
		Handler: router,
	}

	go func() {
		logger.Info("signaling server starting", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down signaling server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("signaling server exiting")
}

func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return obslog.NewDevelopment()
	}
	return obslog.NewProduction()
}

func buildAdapter(redisAddr, redisPassword string, redisDB int, keyPrefix string) (signaling.Adapter, error) {
	if redisAddr == "" {
		return signaling.NewMemoryAdapter(), nil
	}
	return signaling.NewRedisAdapter(signaling.RedisAdapterOptions{
		Addr:      redisAddr,
		Password:  redisPassword,
		DB:        redisDB,
		KeyPrefix: keyPrefix,
	})
}
