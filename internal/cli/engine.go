package cli

import (
	"fmt"

	"github.com/ppiankov/sendwatch/internal/engine"
	"github.com/ppiankov/sendwatch/internal/model"
)

// openEngine wires the pipeline from the --config flag.
func openEngine() (*engine.Engine, error) {
	e, err := engine.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return e, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// printRecord renders one record the way pending/status listings do.
func printRecord(rec *model.ApprovalRecord) {
	fmt.Printf("%-38s %-17s %-8s %-30s %s\n",
		rec.ID,
		rec.Status,
		rec.Request.Channel,
		truncate(rec.Request.ContactID, 30),
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
	)
	if rec.Reason != "" {
		fmt.Printf("  reason: %s\n", rec.Reason)
	}
}
