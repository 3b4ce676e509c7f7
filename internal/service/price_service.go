package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"crypto-mcp-server/internal/cache"
	"crypto-mcp-server/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeframe   = "1h"
	DefaultCandleLimit = 10
	MaxCandleLimit     = 500
)

// ExchangeClient is the upstream market-data capability. Both calls may
// fail with domain.BadSymbolError, domain.NetworkError, or a plain error.
type ExchangeClient interface {
	FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
}

// PriceService answers the two market-data operations. Every failure is
// recovered here and converted into a descriptive text payload; these
// methods never return an error to the caller.
type PriceService struct {
	tracer   trace.Tracer
	exchange ExchangeClient
	cache    cache.PriceCache
	logger   *slog.Logger
}

func NewPriceService(tracer trace.Tracer, exchange ExchangeClient, priceCache cache.PriceCache, logger *slog.Logger) *PriceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceService{
		tracer:   tracer,
		exchange: exchange,
		cache:    priceCache,
		logger:   logger,
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// GetCurrentPrice returns the formatted ticker snapshot for a trading
// pair. Successful payloads are cached under the normalized symbol; error
// payloads are never cached.
func (s *PriceService) GetCurrentPrice(ctx context.Context, symbol string) string {
	ctx, span := s.tracer.Start(ctx, "price-service.get-current-price")
	defer span.End()

	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return "Error: Symbol is required"
	}

	if cached, ok := s.cache.Get(ctx, symbol); ok {
		s.logger.Info("cache hit", "op", "get_current_price", "symbol", symbol)
		return cached
	}

	ticker, err := s.exchange.FetchTicker(ctx, symbol)
	if err != nil {
		return s.failure(err, "get_current_price", symbol,
			fmt.Sprintf("Unexpected error fetching price for %s", symbol))
	}

	report := domain.PriceReport{
		Symbol:           symbol,
		Price:            ticker.Last,
		Bid:              ticker.Bid,
		Ask:              ticker.Ask,
		High24h:          ticker.High24h,
		Low24h:           ticker.Low24h,
		Volume24h:        ticker.BaseVolume,
		Change24h:        ticker.Change24h,
		ChangePercent24h: ticker.ChangePct24h,
		Timestamp:        ticker.Timestamp,
		Datetime:         ticker.Datetime,
	}
	payload, err := formatReport(report)
	if err != nil {
		return s.failure(err, "get_current_price", symbol,
			fmt.Sprintf("Unexpected error fetching price for %s", symbol))
	}

	s.cache.Put(ctx, symbol, payload)
	s.logger.Info("fetched current price", "symbol", symbol)
	return payload
}

// GetHistoricalPrice returns formatted OHLCV candles for a trading pair.
// The timeframe is passed through uninterpreted; limit must be in
// [1, MaxCandleLimit]. Historical responses are not cached: the
// (symbol, timeframe, limit) key space is too wide for a per-symbol TTL
// cache to pay off.
func (s *PriceService) GetHistoricalPrice(ctx context.Context, symbol, timeframe string, limit int) string {
	ctx, span := s.tracer.Start(ctx, "price-service.get-historical-price")
	defer span.End()

	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return "Error: Symbol is required"
	}
	if limit < 1 || limit > MaxCandleLimit {
		return "Error: Limit must be between 1 and 500"
	}

	candles, err := s.exchange.FetchOHLCV(ctx, symbol, timeframe, limit)
	if err != nil {
		return s.failure(err, "get_historical_price", symbol,
			fmt.Sprintf("Unexpected error fetching historical data for %s", symbol))
	}

	report := domain.HistoryReport{
		Symbol:    symbol,
		Timeframe: timeframe,
		Count:     len(candles),
		Candles:   make([]domain.CandleReport, 0, len(candles)),
	}
	for _, candle := range candles {
		report.Candles = append(report.Candles, domain.CandleReport{
			Timestamp: candle.OpenTime,
			Datetime:  domain.ISOMillis(candle.OpenTime),
			Open:      candle.Open,
			High:      candle.High,
			Low:       candle.Low,
			Close:     candle.Close,
			Volume:    candle.Volume,
		})
	}

	payload, err := formatReport(report)
	if err != nil {
		return s.failure(err, "get_historical_price", symbol,
			fmt.Sprintf("Unexpected error fetching historical data for %s", symbol))
	}

	s.logger.Info("fetched historical candles", "symbol", symbol, "timeframe", timeframe, "count", report.Count)
	return payload
}

// failure maps the closed exchange error taxonomy onto the user-visible
// error strings. Bad symbols log at warning, everything else at error.
func (s *PriceService) failure(err error, op, symbol, genericPrefix string) string {
	var badSymbol *domain.BadSymbolError
	var network *domain.NetworkError
	switch {
	case errors.As(err, &badSymbol):
		msg := fmt.Sprintf("Error: Invalid symbol '%s'. Please use format like BTC/USDT, ETH/USDT", symbol)
		s.logger.Warn(msg, "op", op, "symbol", symbol)
		return msg
	case errors.As(err, &network):
		msg := fmt.Sprintf("Network error: %s", network.Err)
		s.logger.Error(msg, "op", op, "symbol", symbol)
		return msg
	default:
		msg := fmt.Sprintf("%s: %s", genericPrefix, err)
		s.logger.Error(msg, "op", op, "symbol", symbol)
		return msg
	}
}

func formatReport(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
