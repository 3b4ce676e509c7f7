package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"crypto-mcp-server/internal/cache"
	"crypto-mcp-server/internal/config"
	"crypto-mcp-server/internal/exchange"
	"crypto-mcp-server/internal/handler"
	"crypto-mcp-server/internal/service"
	"crypto-mcp-server/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initTracerFunc         = tracing.InitTracer
	connectRedisFunc       = cache.Connect
	newExchangeFunc        = exchange.NewBinance
	newPriceServiceFunc    = service.NewPriceService
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	priceCache, err := buildCache(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize cache: %v", err)
	}

	binance := newExchangeFunc(tracer, cfg.ExchangeBaseURL, &http.Client{
		Timeout: time.Duration(cfg.ExchangeTimeoutSecs) * time.Second,
	})
	defer binance.Close()

	priceService := newPriceServiceFunc(tracer, binance, priceCache, nil)
	h := newHandlerFunc(tracer, priceService)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("crypto-mcp-server"))
	r.Use(cors.Default())
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func buildCache(ctx context.Context, cfg *config.Config) (cache.PriceCache, error) {
	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	switch cfg.CacheBackend {
	case "redis":
		client, err := connectRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return cache.NewRedis(client, ttl), nil
	default:
		return cache.NewMemory(ttl), nil
	}
}
