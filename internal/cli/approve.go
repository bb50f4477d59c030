package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/model"
)

var approveActor string

func init() {
	rootCmd.AddCommand(approveCmd)
	approveCmd.Flags().StringVar(&approveActor, "actor", "", "Acting operator (must match the configured operator)")
	approveCmd.MarkFlagRequired("actor")
}

var approveCmd = &cobra.Command{
	Use:   "approve <record-id>",
	Short: "Approve a pending action",
	Long:  "Approves a pending record. Without step mode, delivery is attempted\nimmediately. With step mode, the record waits for `sendwatch confirm`.",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

func runApprove(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.Gateway.Approve(cmd.Context(), args[0], approveActor)
	if err != nil {
		return err
	}

	switch rec.Status {
	case model.StatusSent:
		fmt.Printf("Sent %s to %s\n", rec.ID, rec.Request.ContactID)
	case model.StatusApproved:
		fmt.Printf("Approved %s. Step mode is on: confirm the exact content to deliver:\n", rec.ID)
		fmt.Printf("  sendwatch confirm %s --actor %s --recipient %q --subject %q --body <body>\n",
			rec.ID, approveActor, rec.Request.ContactID, rec.Request.Subject)
	case model.StatusFailed:
		fmt.Printf("Delivery failed for %s: %s\n", rec.ID, rec.Reason)
	default:
		printRecord(rec)
	}
	return nil
}
