package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List actions awaiting approval",
	Long:  "Shows all records in pending_approval with recipient, channel, and risk.",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	list, err := e.Gateway.ListPending()
	if err != nil {
		return fmt.Errorf("failed to list pending records: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No pending actions.")
		return nil
	}

	fmt.Printf("%-38s %-8s %-30s %-8s %s\n", "ID", "CHANNEL", "CONTACT", "RISK", "SUBJECT")
	for _, rec := range list {
		fmt.Printf("%-38s %-8s %-30s %-8s %s\n",
			rec.ID,
			rec.Request.Channel,
			truncate(rec.Request.ContactID, 30),
			rec.Risk.OverallRisk,
			truncate(rec.Request.Subject, 40),
		)
	}
	return nil
}
