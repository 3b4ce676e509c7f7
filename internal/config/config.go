package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ExchangeBaseURL     string
	ExchangeTimeoutSecs int

	CacheBackend string
	CacheTTLSecs int
	RedisURL     string

	HTTPPort int

	MCPTransport          string
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int
}

func Load() *Config {
	cfg := &Config{
		ExchangeBaseURL: strings.TrimSpace(os.Getenv("EXCHANGE_BASE_URL")),
		MCPAuthToken:    os.Getenv("MCP_AUTH_TOKEN"),
	}

	if cfg.ExchangeBaseURL == "" {
		cfg.ExchangeBaseURL = "https://api.binance.com"
	}

	cfg.ExchangeTimeoutSecs = 10
	if v := strings.TrimSpace(os.Getenv("EXCHANGE_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExchangeTimeoutSecs = n
		}
	}

	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(os.Getenv("PRICE_CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "memory"
	}
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" {
		log.Printf("Warning: unsupported PRICE_CACHE_BACKEND=%q, defaulting to memory", cfg.CacheBackend)
		cfg.CacheBackend = "memory"
	}

	cfg.CacheTTLSecs = 60
	if v := strings.TrimSpace(os.Getenv("PRICE_CACHE_TTL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTLSecs = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if cfg.RedisURL == "" && cfg.CacheBackend == "redis" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPRequestTimeoutSecs = 10
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	return cfg
}
