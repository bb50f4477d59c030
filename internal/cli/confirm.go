package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/gateway"
	"github.com/ppiankov/sendwatch/internal/model"
)

var (
	confirmActor     string
	confirmRecipient string
	confirmSubject   string
	confirmBody      string
)

func init() {
	rootCmd.AddCommand(confirmCmd)
	confirmCmd.Flags().StringVar(&confirmActor, "actor", "", "Acting operator")
	confirmCmd.Flags().StringVar(&confirmRecipient, "recipient", "", "Exact recipient of the approved record")
	confirmCmd.Flags().StringVar(&confirmSubject, "subject", "", "Exact subject of the approved record")
	confirmCmd.Flags().StringVar(&confirmBody, "body", "", "Exact body of the approved record ('-' reads stdin)")
	confirmCmd.MarkFlagRequired("actor")
	confirmCmd.MarkFlagRequired("recipient")
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <record-id>",
	Short: "Confirm a step-mode approval with the literal content",
	Long:  "Completes a step-mode approval. The recipient, subject, and body must\nmatch the record exactly; any difference refuses delivery.",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfirm,
}

func runConfirm(cmd *cobra.Command, args []string) error {
	body := confirmBody
	if body == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read body from stdin: %w", err)
		}
		body = string(data)
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.Gateway.Confirm(cmd.Context(), args[0], confirmActor, gateway.Preview{
		Recipient: confirmRecipient,
		Subject:   confirmSubject,
		Body:      body,
	})
	if err != nil {
		return err
	}

	if rec.Status == model.StatusSent {
		fmt.Printf("Sent %s to %s\n", rec.ID, rec.Request.ContactID)
	} else {
		printRecord(rec)
	}
	return nil
}
