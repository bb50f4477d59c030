package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/audit"
	"github.com/ppiankov/sendwatch/internal/config"
)

var (
	auditRecordID  string
	auditContactID string
	auditKind      string
	auditSince     time.Duration
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditQueryCmd.Flags().StringVar(&auditRecordID, "record", "", "Filter by record ID")
	auditQueryCmd.Flags().StringVar(&auditContactID, "contact", "", "Filter by contact ID")
	auditQueryCmd.Flags().StringVar(&auditKind, "kind", "", "Filter by entry kind (decision, transition, mode_change, ...)")
	auditQueryCmd.Flags().DurationVar(&auditSince, "since", 0, "Only entries newer than this (e.g. 24h)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and querying the hash-chained audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of the audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit log entries",
	Long:  "Prints matching entries as JSON lines, oldest first.",
	RunE:  runAuditQuery,
}

func auditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.AuditLogPath(), nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}

	result := audit.Verify(path)
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	path, err := auditPath(nil)
	if err != nil {
		return err
	}

	filter := audit.Filter{
		RecordID:  auditRecordID,
		ContactID: auditContactID,
		Kind:      auditKind,
	}
	if auditSince > 0 {
		filter.From = time.Now().UTC().Add(-auditSince)
	}

	entries, err := audit.Query(path, filter)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		out, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}
