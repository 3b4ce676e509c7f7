package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"crypto-mcp-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// MarketReader mirrors the orchestrator's two text-payload operations.
type MarketReader interface {
	GetCurrentPrice(ctx context.Context, symbol string) string
	GetHistoricalPrice(ctx context.Context, symbol, timeframe string, limit int) string
}

type Handler struct {
	tracer trace.Tracer
	market MarketReader
}

func New(tracer trace.Tracer, market MarketReader) *Handler {
	return &Handler{tracer: tracer, market: market}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	api := r.Group("/api")
	api.GET("/price/:symbol", h.GetPrice)
	api.GET("/history/:symbol", h.GetHistory)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetPrice returns the current ticker snapshot. Pairs arrive with the
// separator URL-escaped or replaced by a dash (BTC-USDT).
func (h *Handler) GetPrice(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-price")
	defer span.End()

	payload := h.market.GetCurrentPrice(c.Request.Context(), pairParam(c))
	respond(c, payload)
}

func (h *Handler) GetHistory(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.get-history")
	defer span.End()

	timeframe := c.DefaultQuery("timeframe", service.DefaultTimeframe)

	limit := service.DefaultCandleLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.String(http.StatusBadRequest, "Error: Limit must be between 1 and 500")
			return
		}
		limit = n
	}

	payload := h.market.GetHistoricalPrice(c.Request.Context(), pairParam(c), timeframe, limit)
	respond(c, payload)
}

func pairParam(c *gin.Context) string {
	return strings.ReplaceAll(c.Param("symbol"), "-", "/")
}

// respond maps the orchestrator's text contract onto HTTP: success
// payloads are JSON, error strings keep their marker prefix and get a
// matching status code.
func respond(c *gin.Context, payload string) {
	switch {
	case strings.HasPrefix(payload, "Error:"):
		c.Data(http.StatusBadRequest, "text/plain; charset=utf-8", []byte(payload))
	case strings.HasPrefix(payload, "Network error:"), strings.HasPrefix(payload, "Unexpected error"):
		c.Data(http.StatusBadGateway, "text/plain; charset=utf-8", []byte(payload))
	default:
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(payload))
	}
}
