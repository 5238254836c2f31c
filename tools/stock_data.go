package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quantrel/tradeloop/internal/market"
)

type StockDataInput struct {
	Symbol string `json:"symbol" jsonschema_description:"The stock symbol to analyze (e.g., AAPL, TSLA, NVDA)."`
	Period string `json:"period,omitempty" jsonschema_description:"Time period for historical data. Options: '1d', '5d', '1mo', '3mo', '6mo', '1y'. Default is '1mo'."`
}

var StockDataInputSchema = GenerateSchema[StockDataInput]()

// StockDataTool returns the get_stock_data definition bound to a market
// client.
func StockDataTool(m *market.Client) ToolDefinition {
	return ToolDefinition{
		Name:        "get_stock_data",
		Description: "Get comprehensive stock data including current price, historical performance, volume, and key financial metrics for detailed analysis.",
		InputSchema: StockDataInputSchema,
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in StockDataInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			if in.Symbol == "" {
				return "", fmt.Errorf("symbol is required")
			}
			quote, err := m.Quote(ctx, in.Symbol, in.Period)
			if err != nil {
				return "", fmt.Errorf("retrieving stock data for %s: %w", in.Symbol, err)
			}
			b, err := json.MarshalIndent(quote, "", "  ")
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}

type MarketOverviewInput struct{}

var MarketOverviewInputSchema = GenerateSchema[MarketOverviewInput]()

// MarketOverviewTool returns the get_market_overview definition bound to a
// market client.
func MarketOverviewTool(m *market.Client) ToolDefinition {
	return ToolDefinition{
		Name:        "get_market_overview",
		Description: "Get current overview of major market indices (S&P 500, Dow Jones, NASDAQ) to understand overall market sentiment and conditions.",
		InputSchema: MarketOverviewInputSchema,
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			overview, err := m.Overview(ctx)
			if err != nil {
				return "", fmt.Errorf("retrieving market overview: %w", err)
			}
			b, err := json.MarshalIndent(overview, "", "  ")
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
