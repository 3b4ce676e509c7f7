package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, market MarketReader) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "get_current_price",
		Description: "Get the current real-time price of a cryptocurrency pair. " +
			"Results are cached for 60 seconds. " +
			"Example symbols: BTC/USDT, ETH/USDT, SOL/USDT",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in getCurrentPriceInput) (*mcp.CallToolResult, any, error) {
		if market == nil {
			return nil, nil, fmt.Errorf("market service unavailable")
		}
		return textResult(market.GetCurrentPrice(ctx, in.Symbol)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "get_historical_price",
		Description: "Get historical OHLCV (Open, High, Low, Close, Volume) data " +
			"for a cryptocurrency pair. Returns the most recent candles. " +
			"Example symbols: BTC/USDT, ETH/USDT, SOL/USDT",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in getHistoricalPriceInput) (*mcp.CallToolResult, any, error) {
		if market == nil {
			return nil, nil, fmt.Errorf("market service unavailable")
		}
		payload := market.GetHistoricalPrice(ctx, in.Symbol, in.timeframeOrDefault(), in.limitOrDefault())
		return textResult(payload), nil, nil
	})
}

// textResult wraps a payload for the protocol layer. The operations
// return text for success and failure alike, so the result never carries
// the protocol-level error flag.
func textResult(payload string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: payload}},
	}
}
