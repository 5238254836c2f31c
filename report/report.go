// Package report persists run result documents as JSON files.
//
// One file per run; documents are written whole and never updated in place.
package report

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/quantrel/tradeloop/internal/conversation"
)

// Save writes the result document to path as indented JSON.
func Save(path string, result *conversation.Result) error {
	b, err := json.MarshalIndent(result, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Load reads a previously saved result document. A missing file returns
// (nil, nil).
func Load(path string) (*conversation.Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var result conversation.Result
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
