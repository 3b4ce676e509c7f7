package mcp

import "strings"

const (
	defaultTimeframe   = "1h"
	defaultCandleLimit = 10
)

type getCurrentPriceInput struct {
	Symbol string `json:"symbol" jsonschema:"Trading pair symbol (e.g., BTC/USDT, ETH/USDT)"`
}

type getHistoricalPriceInput struct {
	Symbol    string `json:"symbol" jsonschema:"Trading pair symbol (e.g., BTC/USDT, ETH/USDT)"`
	Timeframe string `json:"timeframe,omitempty" jsonschema:"Timeframe for candles (e.g., 1m, 5m, 1h, 1d), default 1h"`
	Limit     *int   `json:"limit,omitempty" jsonschema:"Number of candles to retrieve (max 500), default 10"`
}

func (in getHistoricalPriceInput) timeframeOrDefault() string {
	if strings.TrimSpace(in.Timeframe) == "" {
		return defaultTimeframe
	}
	return in.Timeframe
}

// limitOrDefault distinguishes an omitted limit (defaulted to 10) from an
// explicit zero, which the orchestrator rejects.
func (in getHistoricalPriceInput) limitOrDefault() int {
	if in.Limit == nil {
		return defaultCandleLimit
	}
	return *in.Limit
}
