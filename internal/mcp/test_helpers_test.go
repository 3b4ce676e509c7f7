package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubMarket struct {
	prices  map[string]string
	history string

	lastPriceSymbol   string
	lastHistorySymbol string
	lastTimeframe     string
	lastLimit         int
}

func (s *stubMarket) GetCurrentPrice(ctx context.Context, symbol string) string {
	s.lastPriceSymbol = symbol
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return "Error: Symbol is required"
	}
	if payload, ok := s.prices[normalized]; ok {
		return payload
	}
	return fmt.Sprintf("Error: Invalid symbol '%s'. Please use format like BTC/USDT, ETH/USDT", normalized)
}

func (s *stubMarket) GetHistoricalPrice(ctx context.Context, symbol, timeframe string, limit int) string {
	s.lastHistorySymbol = symbol
	s.lastTimeframe = timeframe
	s.lastLimit = limit
	return s.history
}

func testServer() (*sdkmcp.Server, *stubMarket) {
	market := &stubMarket{
		prices: map[string]string{
			"BTC/USDT": `{
  "symbol": "BTC/USDT",
  "price": 45000
}`,
		},
		history: `{
  "symbol": "BTC/USDT",
  "timeframe": "1h",
  "count": 3,
  "candles": []
}`,
	}
	srv := NewServer(nil, market, ServerConfig{})
	return srv, market
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func resultText(result *sdkmcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	if !ok {
		return ""
	}
	return text.Text
}
