package tools

import (
	"github.com/quantrel/tradeloop/internal/market"
	"github.com/quantrel/tradeloop/internal/websearch"
)

// TradingTools returns all tool definitions wired for the agent.
func TradingTools(m *market.Client, s *websearch.Client) []ToolDefinition {
	return []ToolDefinition{
		StockDataTool(m),
		MarketOverviewTool(m),
		WebSearchTool(s),
		BuyStockDefinition,
		SellStockDefinition,
		HoldStockDefinition,
	}
}
