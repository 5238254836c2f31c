package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// The order tools are recommendation-only simulators: they never reach a
// brokerage, they just phrase the decision the model has committed to.

type BuyStockInput struct {
	Symbol   string `json:"symbol" jsonschema_description:"The stock symbol to recommend buying."`
	Quantity int    `json:"quantity,omitempty" jsonschema_description:"Number of shares to recommend buying. Default is 1."`
}

var BuyStockDefinition = ToolDefinition{
	Name:        "buy_stock",
	Description: "Generate a BUY recommendation for a stock after analysis.",
	InputSchema: GenerateSchema[BuyStockInput](),
	Function: func(_ context.Context, input json.RawMessage) (string, error) {
		var in BuyStockInput
		if err := json.Unmarshal(input, &in); err != nil {
			return "", err
		}
		if in.Symbol == "" {
			return "", fmt.Errorf("symbol is required")
		}
		if in.Quantity <= 0 {
			in.Quantity = 1
		}
		return fmt.Sprintf("RECOMMENDATION: BUY %d shares of %s", in.Quantity, in.Symbol), nil
	},
}

type SellStockInput struct {
	Symbol   string `json:"symbol" jsonschema_description:"The stock symbol to recommend selling."`
	Quantity int    `json:"quantity,omitempty" jsonschema_description:"Number of shares to recommend selling. Default is 1."`
}

var SellStockDefinition = ToolDefinition{
	Name:        "sell_stock",
	Description: "Generate a SELL recommendation for a stock after analysis.",
	InputSchema: GenerateSchema[SellStockInput](),
	Function: func(_ context.Context, input json.RawMessage) (string, error) {
		var in SellStockInput
		if err := json.Unmarshal(input, &in); err != nil {
			return "", err
		}
		if in.Symbol == "" {
			return "", fmt.Errorf("symbol is required")
		}
		if in.Quantity <= 0 {
			in.Quantity = 1
		}
		return fmt.Sprintf("RECOMMENDATION: SELL %d shares of %s", in.Quantity, in.Symbol), nil
	},
}

type HoldStockInput struct {
	Symbol string `json:"symbol" jsonschema_description:"The stock symbol to recommend holding."`
	Reason string `json:"reason,omitempty" jsonschema_description:"Reason for the hold recommendation."`
}

var HoldStockDefinition = ToolDefinition{
	Name:        "hold_stock",
	Description: "Generate a HOLD recommendation for a stock after analysis.",
	InputSchema: GenerateSchema[HoldStockInput](),
	Function: func(_ context.Context, input json.RawMessage) (string, error) {
		var in HoldStockInput
		if err := json.Unmarshal(input, &in); err != nil {
			return "", err
		}
		if in.Symbol == "" {
			return "", fmt.Errorf("symbol is required")
		}
		if in.Reason == "" {
			in.Reason = "Based on current analysis"
		}
		return fmt.Sprintf("RECOMMENDATION: HOLD %s. Reason: %s", in.Symbol, in.Reason), nil
	},
}
