package mcp

import "context"

// MarketReader exposes the two read-only market-data operations. Both
// return a text payload in all cases; failures arrive as descriptive
// error strings, never as errors.
type MarketReader interface {
	GetCurrentPrice(ctx context.Context, symbol string) string
	GetHistoricalPrice(ctx context.Context, symbol, timeframe string, limit int) string
}
