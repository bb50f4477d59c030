package delivery

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Allowlist checks recipient addresses against a configured list.
type Allowlist struct {
	patterns []string
}

// LoadAllowlist reads an allowlist file. One pattern per line.
// Lines starting with # are comments. Empty lines are skipped.
// Patterns are either exact addresses or @domain.com wildcards.
func LoadAllowlist(path string) (*Allowlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open allowlist: %w", err)
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	return &Allowlist{patterns: patterns}, nil
}

// IsAllowed returns true if the recipient matches any pattern.
// Matching is case-insensitive. Supports exact match and @domain.com
// wildcards.
func (a *Allowlist) IsAllowed(recipient string) bool {
	recipient = strings.ToLower(recipient)
	for _, p := range a.patterns {
		if p == recipient {
			return true
		}
		// Domain wildcard: @example.com matches any user@example.com.
		if strings.HasPrefix(p, "@") && strings.HasSuffix(recipient, p) {
			return true
		}
	}
	return false
}
