package conversation

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
)

// ToolExecutionRecord is one append-only audit entry per dispatched tool
// call, kept independent of the conversation turns. Result holds the text
// outcome, or the error string fed back to the model when the call failed.
type ToolExecutionRecord struct {
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input"`
	Result    string          `json:"result"`
	Iteration int             `json:"iteration"`
}

// State owns one run's ordered turn history and tool execution log. It is
// created fresh per Run call and mutated only by the driver; turns are
// appended, never edited in place.
type State struct {
	turns      []anthropic.MessageParam
	executions []ToolExecutionRecord
}

func (s *State) appendTurn(turn anthropic.MessageParam) {
	s.turns = append(s.turns, turn)
}

func (s *State) recordExecution(rec ToolExecutionRecord) {
	s.executions = append(s.executions, rec)
}

// Turns returns the ordered turn history.
func (s *State) Turns() []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, len(s.turns))
	copy(out, s.turns)
	return out
}

// Executions returns the tool execution log in dispatch order.
func (s *State) Executions() []ToolExecutionRecord {
	out := make([]ToolExecutionRecord, len(s.executions))
	copy(out, s.executions)
	return out
}
