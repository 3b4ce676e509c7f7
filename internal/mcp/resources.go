package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// exampleSymbols is advertised to clients; the exchange remains the
// authority on which pairs actually exist.
var exampleSymbols = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}

func registerResources(server *mcp.Server, market MarketReader) {
	server.AddResource(&mcp.Resource{
		URI:         "market://example-symbols",
		Name:        "example-symbols",
		Description: "Example trading pair symbols in the format the tools accept",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		return jsonResource(req.Params.URI, exampleSymbols)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "market://price/{symbol}",
		Name:        "current-price",
		Description: "Current ticker snapshot for a trading pair (same payload as get_current_price)",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if market == nil {
			return nil, fmt.Errorf("market service unavailable")
		}
		parsed, err := url.Parse(req.Params.URI)
		if err != nil || parsed.Scheme != "market" || parsed.Host != "price" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		symbol := strings.Trim(strings.TrimSpace(parsed.Path), "/")
		return textResource(req.Params.URI, market.GetCurrentPrice(ctx, symbol))
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "market://history/{symbol}{?timeframe,limit}",
		Name:        "historical-candles",
		Description: "Historical OHLCV candles for a trading pair (same payload as get_historical_price)",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if market == nil {
			return nil, fmt.Errorf("market service unavailable")
		}
		parsed, err := url.Parse(req.Params.URI)
		if err != nil || parsed.Scheme != "market" || parsed.Host != "history" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		symbol := strings.Trim(strings.TrimSpace(parsed.Path), "/")

		timeframe := strings.TrimSpace(parsed.Query().Get("timeframe"))
		if timeframe == "" {
			timeframe = defaultTimeframe
		}

		limit := defaultCandleLimit
		if rawLimit := strings.TrimSpace(parsed.Query().Get("limit")); rawLimit != "" {
			limit, err = strconv.Atoi(rawLimit)
			if err != nil {
				return nil, fmt.Errorf("invalid limit: %s", rawLimit)
			}
		}

		return textResource(req.Params.URI, market.GetHistoricalPrice(ctx, symbol, timeframe, limit))
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func textResource(uri, payload string) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     payload,
		}},
	}, nil
}
