package audit

import (
	"encoding/json"
	"errors"
	"fmt"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// chainError marks the first broken link found during a walk.
type chainError struct {
	line int
	msg  string
}

func (e *chainError) Error() string { return e.msg }

// Verify reads a JSONL audit log and validates the hash chain.
// Returns Valid=true if the chain is intact, or details about
// the first broken link.
func Verify(path string) VerifyResult {
	lines := 0
	var prevLine []byte

	err := forEachLine(path, func(n int, line []byte) error {
		lines = n

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return &chainError{line: n, msg: fmt.Sprintf("parse error: %v", err)}
		}

		if n == 1 {
			if entry.PrevHash != GenesisHash {
				return &chainError{line: 1, msg: fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", entry.PrevHash)}
			}
		} else if expected := HashLine(prevLine); entry.PrevHash != expected {
			return &chainError{line: n, msg: fmt.Sprintf("hash mismatch: expected %s, got %s", expected, entry.PrevHash)}
		}

		prevLine = line
		return nil
	})

	if err != nil {
		var broken *chainError
		if errors.As(err, &broken) {
			return VerifyResult{Error: broken.msg, ErrorLine: broken.line}
		}
		return VerifyResult{Error: err.Error()}
	}
	return VerifyResult{Valid: true, Lines: lines}
}
