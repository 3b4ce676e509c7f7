package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crypto-mcp-server/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://api.binance.com"

	defaultHTTPTimeout = 10 * time.Second

	// Binance rejects unknown trading pairs with this API error code.
	badSymbolCode = -1121
)

// Binance fetches market data from the Binance public REST API. A single
// instance shares one http.Client across all requests.
type Binance struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
}

func NewBinance(tracer trace.Tracer, baseURL string, client *http.Client) *Binance {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Binance{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		tracer:  tracer,
	}
}

// Close releases pooled upstream connections.
func (b *Binance) Close() {
	b.client.CloseIdleConnections()
}

// marketSymbol converts a BTC/USDT style pair into the separator-free form
// the exchange expects.
func marketSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

type tickerResponse struct {
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	CloseTime          int64  `json:"closeTime"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (b *Binance) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	ctx, span := b.tracer.Start(ctx, "exchange.fetch-ticker")
	span.SetAttributes(attribute.String("exchange.symbol", symbol))
	defer span.End()

	q := url.Values{}
	q.Set("symbol", marketSymbol(symbol))

	var body tickerResponse
	if err := b.getJSON(ctx, "/api/v3/ticker/24hr", q, symbol, &body); err != nil {
		span.RecordError(err)
		return nil, err
	}

	ticker := &domain.Ticker{
		Symbol:    symbol,
		Timestamp: body.CloseTime,
		Datetime:  domain.ISOMillis(body.CloseTime),
	}

	var err error
	if ticker.Last, err = parsePrice("lastPrice", body.LastPrice); err != nil {
		return nil, err
	}
	if ticker.Bid, err = parsePrice("bidPrice", body.BidPrice); err != nil {
		return nil, err
	}
	if ticker.Ask, err = parsePrice("askPrice", body.AskPrice); err != nil {
		return nil, err
	}
	if ticker.High24h, err = parsePrice("highPrice", body.HighPrice); err != nil {
		return nil, err
	}
	if ticker.Low24h, err = parsePrice("lowPrice", body.LowPrice); err != nil {
		return nil, err
	}
	if ticker.BaseVolume, err = parsePrice("volume", body.Volume); err != nil {
		return nil, err
	}
	if ticker.Change24h, err = parsePrice("priceChange", body.PriceChange); err != nil {
		return nil, err
	}
	if ticker.ChangePct24h, err = parsePrice("priceChangePercent", body.PriceChangePercent); err != nil {
		return nil, err
	}
	return ticker, nil
}

// FetchOHLCV returns up to limit candles ordered oldest to newest, as the
// exchange returns them. The timeframe is passed through uninterpreted;
// the exchange is the authority on valid timeframes.
func (b *Binance) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	ctx, span := b.tracer.Start(ctx, "exchange.fetch-ohlcv")
	span.SetAttributes(
		attribute.String("exchange.symbol", symbol),
		attribute.String("exchange.timeframe", timeframe),
		attribute.Int("exchange.limit", limit),
	)
	defer span.End()

	q := url.Values{}
	q.Set("symbol", marketSymbol(symbol))
	q.Set("interval", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]any
	if err := b.getJSON(ctx, "/api/v3/klines", q, symbol, &rows); err != nil {
		span.RecordError(err)
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline row %d: expected 6 fields, got %d", i, len(row))
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("kline row %d: unexpected open time type %T", i, row[0])
		}
		candle := domain.Candle{OpenTime: int64(openTime)}

		var err error
		if candle.Open, err = klineFloat("open", row[1]); err != nil {
			return nil, fmt.Errorf("kline row %d: %w", i, err)
		}
		if candle.High, err = klineFloat("high", row[2]); err != nil {
			return nil, fmt.Errorf("kline row %d: %w", i, err)
		}
		if candle.Low, err = klineFloat("low", row[3]); err != nil {
			return nil, fmt.Errorf("kline row %d: %w", i, err)
		}
		if candle.Close, err = klineFloat("close", row[4]); err != nil {
			return nil, fmt.Errorf("kline row %d: %w", i, err)
		}
		if candle.Volume, err = klineFloat("volume", row[5]); err != nil {
			return nil, fmt.Errorf("kline row %d: %w", i, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// getJSON issues a GET and decodes the response, classifying failures into
// the domain error taxonomy: transport errors and upstream 5xx become
// NetworkError, a -1121 API error becomes BadSymbolError, everything else
// stays a plain error.
func (b *Binance) getJSON(ctx context.Context, path string, q url.Values, symbol string, out any) error {
	u := fmt.Sprintf("%s%s?%s", b.baseURL, path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	res, err := b.client.Do(req)
	if err != nil {
		return &domain.NetworkError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code == badSymbolCode {
			return &domain.BadSymbolError{Symbol: symbol}
		}
		if res.StatusCode >= http.StatusInternalServerError {
			return &domain.NetworkError{Err: fmt.Errorf("exchange http %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))}
		}
		return fmt.Errorf("exchange http %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode exchange response: %w", err)
	}
	return nil
}

func parsePrice(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, raw, err)
	}
	return v, nil
}

func klineFloat(name string, v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return parsePrice(name, x)
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected %s type %T", name, v)
	}
}
