package domain

import (
	"fmt"
	"time"
)

// Ticker is a point-in-time snapshot of market statistics for one trading
// pair, as reported by the exchange. Timestamp is epoch milliseconds and
// Datetime its ISO-8601 rendering.
type Ticker struct {
	Symbol       string
	Last         float64
	Bid          float64
	Ask          float64
	High24h      float64
	Low24h       float64
	BaseVolume   float64
	Change24h    float64
	ChangePct24h float64
	Timestamp    int64
	Datetime     string
}

// Candle is one OHLCV aggregate bucket. OpenTime is epoch milliseconds.
type Candle struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// PriceReport is the canonical current-price payload shape.
type PriceReport struct {
	Symbol           string  `json:"symbol"`
	Price            float64 `json:"price"`
	Bid              float64 `json:"bid"`
	Ask              float64 `json:"ask"`
	High24h          float64 `json:"high_24h"`
	Low24h           float64 `json:"low_24h"`
	Volume24h        float64 `json:"volume_24h"`
	Change24h        float64 `json:"change_24h"`
	ChangePercent24h float64 `json:"change_percent_24h"`
	Timestamp        int64   `json:"timestamp"`
	Datetime         string  `json:"datetime"`
}

// CandleReport decorates a candle with the ISO-8601 form of its open time.
type CandleReport struct {
	Timestamp int64   `json:"timestamp"`
	Datetime  string  `json:"datetime"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// HistoryReport is the canonical historical-candles payload shape.
type HistoryReport struct {
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Count     int            `json:"count"`
	Candles   []CandleReport `json:"candles"`
}

// ISOMillis renders an epoch-millisecond timestamp as ISO-8601 UTC.
func ISOMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

// BadSymbolError reports that the exchange does not recognize a symbol.
type BadSymbolError struct {
	Symbol string
}

func (e *BadSymbolError) Error() string {
	return fmt.Sprintf("exchange does not recognize symbol %q", e.Symbol)
}

// NetworkError reports a connectivity failure while talking to the
// exchange.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }
