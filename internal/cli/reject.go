package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	rejectActor  string
	rejectReason string
)

func init() {
	rootCmd.AddCommand(rejectCmd)
	rejectCmd.Flags().StringVar(&rejectActor, "actor", "", "Acting operator")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Why the action is rejected (required)")
	rejectCmd.MarkFlagRequired("actor")
	rejectCmd.MarkFlagRequired("reason")
}

var rejectCmd = &cobra.Command{
	Use:   "reject <record-id>",
	Short: "Reject a pending action",
	Long:  "Rejects a pending record with a mandatory reason. Rejection is terminal;\nthe agent must submit a new request to try again.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReject,
}

func runReject(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.Gateway.Reject(args[0], rejectActor, rejectReason)
	if err != nil {
		return err
	}

	fmt.Printf("Rejected %s: %s\n", rec.ID, rec.Reason)
	return nil
}
