package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Filter holds criteria for querying the audit log. Zero-value
// fields are ignored; all set fields must match.
type Filter struct {
	RecordID  string
	ContactID string
	Kind      string
	From      time.Time // zero value = no lower bound
	To        time.Time // zero value = no upper bound
}

// Query scans the audit log and returns entries matching the filter,
// in append order.
func Query(path string, filter Filter) ([]Entry, error) {
	var entries []Entry

	err := forEachLine(path, func(_ int, line []byte) error {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil // skip malformed lines
		}

		if filter.RecordID != "" && entry.RecordID != filter.RecordID {
			return nil
		}
		if filter.ContactID != "" && entry.ContactID != filter.ContactID {
			return nil
		}
		if filter.Kind != "" && entry.Kind != filter.Kind {
			return nil
		}

		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				return nil
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				return nil
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				return nil
			}
		}

		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: scan log: %w", err)
	}

	return entries, nil
}
