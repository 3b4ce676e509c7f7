package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"crypto-mcp-server/internal/cache"
	"crypto-mcp-server/internal/config"
	"crypto-mcp-server/internal/exchange"
	mcpserver "crypto-mcp-server/internal/mcp"
	"crypto-mcp-server/internal/service"
	"crypto-mcp-server/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB

var (
	loadEnvFunc         = godotenv.Load
	loadConfigFunc      = config.Load
	initTracerFunc      = tracing.InitTracer
	connectRedisFunc    = cache.Connect
	newExchangeFunc     = exchange.NewBinance
	newPriceServiceFunc = service.NewPriceService
	newMCPServerFunc    = mcpserver.NewServer
	newMCPHandlerFunc   = mcpserver.NewHTTPTransportHandler
	runStdioFunc        = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
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

	mcpSrv := newMCPServerFunc(tracer, priceService, mcpserver.ServerConfig{
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
	})

	transport := strings.ToLower(strings.TrimSpace(cfg.MCPTransport))
	switch transport {
	case "", "stdio":
		if err := runStdioFunc(ctx, mcpSrv); err != nil {
			log.Fatalf("mcp stdio server failed: %v", err)
		}
	case "http":
		if err := runHTTPMode(ctx, cancel, cfg, mcpSrv); err != nil {
			log.Fatalf("mcp http server failed: %v", err)
		}
	default:
		log.Fatalf("unsupported MCP_TRANSPORT: %s", cfg.MCPTransport)
	}
}

// buildCache selects the cache backend from config. Redis is shared
// across replicas; memory is per process.
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

func runHTTPMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, mcpSrv *sdkmcp.Server) error {
	if strings.TrimSpace(cfg.MCPAuthToken) == "" {
		return fmt.Errorf("MCP_AUTH_TOKEN is required when MCP_TRANSPORT=http")
	}

	handler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})

	addr := net.JoinHostPort(cfg.MCPHTTPBind, fmt.Sprintf("%d", cfg.MCPHTTPPort))
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Printf("mcp http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}
