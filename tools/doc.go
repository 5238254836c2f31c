// Package tools defines tool contracts, the dispatch registry, and the
// trading tool implementations.
//
// Includes:
//   - ToolDefinition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - Registry: name -> handler dispatch under an advisory per-call timeout.
//   - Trading tools: get_stock_data, get_market_overview, buy_stock,
//     sell_stock, hold_stock, web_search.
//   - Invariants: one invocation's failure never aborts sibling invocations;
//     every outcome is coerced to text before re-entering the conversation.
package tools
