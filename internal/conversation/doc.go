// Package conversation coordinates the bounded sequential tool-execution
// loop against the Anthropic Messages API.
//
// Invariants:
//   - tool_use blocks and their corresponding tool_result blocks stay
//     adjacent: each assistant turn with tool calls is answered by exactly
//     one user turn carrying one tool_result per call, in block order.
//   - at most max_iterations model requests are issued before forced
//     finalization, which adds exactly one more request with no tools.
//
// Flow:
//
//	user(prompt) -> assistant(tool_use...) -> user(tool_result...) -> ... -> assistant(text)
package conversation
