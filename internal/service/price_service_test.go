package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"crypto-mcp-server/internal/cache"
	"crypto-mcp-server/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTicker = &domain.Ticker{
	Symbol:       "BTC/USDT",
	Last:         45000.00,
	Bid:          44999.50,
	Ask:          45000.50,
	High24h:      46000.00,
	Low24h:       44000.00,
	BaseVolume:   1234.56,
	Change24h:    1000.00,
	ChangePct24h: 2.27,
	Timestamp:    1704067200000,
	Datetime:     "2024-01-01T00:00:00.000Z",
}

var testCandles = []domain.Candle{
	{OpenTime: 1704067200000, Open: 45000, High: 45500, Low: 44500, Close: 45200, Volume: 100.5},
	{OpenTime: 1704070800000, Open: 45200, High: 45800, Low: 45100, Close: 45600, Volume: 90.1},
	{OpenTime: 1704074400000, Open: 45600, High: 45900, Low: 45400, Close: 45700, Volume: 80.2},
}

type stubExchange struct {
	ticker     *domain.Ticker
	tickerErr  error
	candles    []domain.Candle
	candlesErr error

	tickerCalls int
	ohlcvCalls  int

	lastTickerSymbol string
	lastOHLCVSymbol  string
	lastTimeframe    string
	lastLimit        int
}

func (s *stubExchange) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	s.tickerCalls++
	s.lastTickerSymbol = symbol
	if s.tickerErr != nil {
		return nil, s.tickerErr
	}
	ticker := *s.ticker
	return &ticker, nil
}

func (s *stubExchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	s.ohlcvCalls++
	s.lastOHLCVSymbol = symbol
	s.lastTimeframe = timeframe
	s.lastLimit = limit
	if s.candlesErr != nil {
		return nil, s.candlesErr
	}
	return append([]domain.Candle(nil), s.candles...), nil
}

func newTestService(exchange *stubExchange, priceCache cache.PriceCache) *PriceService {
	tracer := trace.NewNoopTracerProvider().Tracer("service-test")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if priceCache == nil {
		priceCache = cache.NewMemory(60 * time.Second)
	}
	return NewPriceService(tracer, exchange, priceCache, logger)
}

func TestGetCurrentPriceCachesWithinTTL(t *testing.T) {
	exchange := &stubExchange{ticker: testTicker}
	svc := newTestService(exchange, nil)
	ctx := context.Background()

	first := svc.GetCurrentPrice(ctx, "BTC/USDT")
	second := svc.GetCurrentPrice(ctx, "BTC/USDT")

	if exchange.tickerCalls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", exchange.tickerCalls)
	}
	if first != second {
		t.Fatalf("expected byte-identical payloads:\n%s\n%s", first, second)
	}
}

func TestGetCurrentPriceRefetchesAfterExpiry(t *testing.T) {
	exchange := &stubExchange{ticker: testTicker}
	svc := newTestService(exchange, cache.NewMemory(time.Millisecond))
	ctx := context.Background()

	svc.GetCurrentPrice(ctx, "BTC/USDT")
	time.Sleep(5 * time.Millisecond)
	svc.GetCurrentPrice(ctx, "BTC/USDT")

	if exchange.tickerCalls != 2 {
		t.Fatalf("expected a second fetch after expiry, got %d", exchange.tickerCalls)
	}
}

func TestSymbolNormalization(t *testing.T) {
	exchange := &stubExchange{ticker: testTicker}
	svc := newTestService(exchange, nil)
	ctx := context.Background()

	first := svc.GetCurrentPrice(ctx, "  btc/usdt ")
	if exchange.lastTickerSymbol != "BTC/USDT" {
		t.Fatalf("expected normalized symbol sent upstream, got %q", exchange.lastTickerSymbol)
	}

	// Different casing of the same pair hits the same cache key.
	second := svc.GetCurrentPrice(ctx, "BTC/USDT")
	if exchange.tickerCalls != 1 {
		t.Fatalf("expected cache hit for re-cased symbol, got %d fetches", exchange.tickerCalls)
	}
	if first != second {
		t.Fatal("expected identical payloads for normalized symbols")
	}
}

func TestMissingSymbolNeverReachesUpstream(t *testing.T) {
	exchange := &stubExchange{ticker: testTicker, candles: testCandles}
	memory := cache.NewMemory(60 * time.Second)
	svc := newTestService(exchange, memory)
	ctx := context.Background()

	for _, symbol := range []string{"", "   "} {
		if got := svc.GetCurrentPrice(ctx, symbol); got != "Error: Symbol is required" {
			t.Fatalf("unexpected response for %q: %s", symbol, got)
		}
		if got := svc.GetHistoricalPrice(ctx, symbol, "1h", 10); got != "Error: Symbol is required" {
			t.Fatalf("unexpected response for %q: %s", symbol, got)
		}
	}
	if exchange.tickerCalls != 0 || exchange.ohlcvCalls != 0 {
		t.Fatalf("expected no upstream calls, got %d/%d", exchange.tickerCalls, exchange.ohlcvCalls)
	}
}

func TestLimitBoundaries(t *testing.T) {
	exchange := &stubExchange{candles: testCandles}
	svc := newTestService(exchange, nil)
	ctx := context.Background()

	for _, limit := range []int{0, 501, -1} {
		got := svc.GetHistoricalPrice(ctx, "BTC/USDT", "1h", limit)
		if got != "Error: Limit must be between 1 and 500" {
			t.Fatalf("unexpected response for limit %d: %s", limit, got)
		}
	}
	if exchange.ohlcvCalls != 0 {
		t.Fatalf("expected rejected limits to skip upstream, got %d calls", exchange.ohlcvCalls)
	}

	for _, limit := range []int{1, 500} {
		got := svc.GetHistoricalPrice(ctx, "BTC/USDT", "1h", limit)
		if strings.HasPrefix(got, "Error") {
			t.Fatalf("unexpected error for limit %d: %s", limit, got)
		}
		if exchange.lastLimit != limit {
			t.Fatalf("expected limit %d sent upstream, got %d", limit, exchange.lastLimit)
		}
	}
}

func TestCacheIsolationPerSymbol(t *testing.T) {
	exchange := &stubExchange{ticker: testTicker}
	svc := newTestService(exchange, nil)
	ctx := context.Background()

	svc.GetCurrentPrice(ctx, "BTC/USDT")
	svc.GetCurrentPrice(ctx, "ETH/USDT")

	if exchange.tickerCalls != 2 {
		t.Fatalf("expected one fetch per symbol, got %d", exchange.tickerCalls)
	}

	svc.GetCurrentPrice(ctx, "BTC/USDT")
	svc.GetCurrentPrice(ctx, "ETH/USDT")
	if exchange.tickerCalls != 2 {
		t.Fatalf("expected both symbols cached independently, got %d fetches", exchange.tickerCalls)
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		prefix string
	}{
		{"bad symbol", &domain.BadSymbolError{Symbol: "BTC/USDT"}, "Error: Invalid symbol 'BTC/USDT'"},
		{"network", &domain.NetworkError{Err: errors.New("dial tcp: connection refused")}, "Network error: dial tcp: connection refused"},
		{"other", errors.New("rate limited"), "Unexpected error fetching price for BTC/USDT: rate limited"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exchange := &stubExchange{ticker: testTicker, tickerErr: tc.err}
			memory := cache.NewMemory(60 * time.Second)
			svc := newTestService(exchange, memory)
			ctx := context.Background()

			got := svc.GetCurrentPrice(ctx, "BTC/USDT")
			if !strings.HasPrefix(got, tc.prefix) {
				t.Fatalf("unexpected response: %s", got)
			}
			if _, ok := memory.Get(ctx, "BTC/USDT"); ok {
				t.Fatal("expected no cache entry on failure")
			}

			// Once the upstream recovers, a fresh fetch succeeds and caches.
			exchange.tickerErr = nil
			got = svc.GetCurrentPrice(ctx, "BTC/USDT")
			if strings.HasPrefix(got, "Error") || strings.HasPrefix(got, "Network error") {
				t.Fatalf("unexpected response after recovery: %s", got)
			}
			if _, ok := memory.Get(ctx, "BTC/USDT"); !ok {
				t.Fatal("expected cache entry after recovery")
			}
		})
	}
}

func TestGetCurrentPricePayload(t *testing.T) {
	exchange := &stubExchange{ticker: testTicker}
	svc := newTestService(exchange, nil)

	payload := svc.GetCurrentPrice(context.Background(), "BTC/USDT")

	if !strings.Contains(payload, `"symbol": "BTC/USDT"`) {
		t.Fatalf("expected symbol in payload:\n%s", payload)
	}

	var report domain.PriceReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if report.Price != 45000.00 || report.Bid != 44999.50 || report.Ask != 45000.50 {
		t.Fatalf("unexpected prices: %+v", report)
	}
	if report.High24h != 46000 || report.Low24h != 44000 || report.Volume24h != 1234.56 {
		t.Fatalf("unexpected 24h stats: %+v", report)
	}
	if report.Change24h != 1000 || report.ChangePercent24h != 2.27 {
		t.Fatalf("unexpected change stats: %+v", report)
	}
	if report.Timestamp != 1704067200000 || report.Datetime != "2024-01-01T00:00:00.000Z" {
		t.Fatalf("unexpected timestamps: %+v", report)
	}
}

func TestGetHistoricalPricePayload(t *testing.T) {
	exchange := &stubExchange{candles: testCandles}
	svc := newTestService(exchange, nil)

	payload := svc.GetHistoricalPrice(context.Background(), "BTC/USDT", "1h", 3)

	var report domain.HistoryReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if report.Symbol != "BTC/USDT" || report.Timeframe != "1h" || report.Count != 3 {
		t.Fatalf("unexpected header: %+v", report)
	}
	if len(report.Candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(report.Candles))
	}
	first := report.Candles[0]
	if first.Timestamp != 1704067200000 || first.Datetime != "2024-01-01T00:00:00.000Z" {
		t.Fatalf("unexpected first candle time: %+v", first)
	}
	if first.Open != 45000 || first.High != 45500 || first.Low != 44500 || first.Close != 45200 || first.Volume != 100.5 {
		t.Fatalf("unexpected first candle: %+v", first)
	}
	if report.Candles[1].Timestamp <= first.Timestamp {
		t.Fatal("expected candle order preserved oldest to newest")
	}
}

func TestGetHistoricalPriceBadSymbol(t *testing.T) {
	exchange := &stubExchange{candlesErr: &domain.BadSymbolError{Symbol: "INVALID/SYMBOL"}}
	svc := newTestService(exchange, nil)

	got := svc.GetHistoricalPrice(context.Background(), "INVALID/SYMBOL", "1h", 10)
	if !strings.Contains(got, "Error") || !strings.Contains(got, "Invalid symbol") {
		t.Fatalf("unexpected response: %s", got)
	}
}

func TestGetHistoricalPriceNetworkError(t *testing.T) {
	exchange := &stubExchange{candlesErr: &domain.NetworkError{Err: errors.New("timeout")}}
	svc := newTestService(exchange, nil)

	got := svc.GetHistoricalPrice(context.Background(), "BTC/USDT", "1h", 10)
	if got != "Network error: timeout" {
		t.Fatalf("unexpected response: %s", got)
	}
}

func TestGetHistoricalPriceUnclassifiedError(t *testing.T) {
	exchange := &stubExchange{candlesErr: errors.New("boom")}
	svc := newTestService(exchange, nil)

	got := svc.GetHistoricalPrice(context.Background(), "BTC/USDT", "1h", 10)
	if got != "Unexpected error fetching historical data for BTC/USDT: boom" {
		t.Fatalf("unexpected response: %s", got)
	}
}

func TestTimeframePassedThrough(t *testing.T) {
	exchange := &stubExchange{candles: testCandles}
	svc := newTestService(exchange, nil)

	svc.GetHistoricalPrice(context.Background(), "BTC/USDT", "7m", 10)
	if exchange.lastTimeframe != "7m" {
		t.Fatalf("expected timeframe passed through uninterpreted, got %s", exchange.lastTimeframe)
	}
}
