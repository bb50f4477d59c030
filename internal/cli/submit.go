package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/model"
)

var (
	submitContact string
	submitCompany string
	submitChannel string
	submitKind    string
	submitSubject string
	submitBody    string
	submitJSON    bool
)

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitContact, "contact", "", "Recipient contact ID (required)")
	submitCmd.Flags().StringVar(&submitCompany, "company", "", "Recipient's company")
	submitCmd.Flags().StringVar(&submitChannel, "channel", "email", "Delivery channel: email, slack, sms, internal")
	submitCmd.Flags().StringVar(&submitKind, "kind", "send_message", "Action kind: send_message, execute_query, modify_data")
	submitCmd.Flags().StringVar(&submitSubject, "subject", "", "Message subject")
	submitCmd.Flags().StringVar(&submitBody, "body", "", "Message body ('-' reads stdin)")
	submitCmd.Flags().BoolVar(&submitJSON, "json", false, "Print the full record as JSON")
	submitCmd.MarkFlagRequired("contact")
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a proposed outbound action",
	Long:  "Runs one proposed action through the full pipeline: frequency safeguards,\ncontent risk rules, and the kill-switch decision. Prints the resulting record.",
	RunE:  runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	body := submitBody
	if body == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read body from stdin: %w", err)
		}
		body = string(data)
	}
	if body == "" {
		return fmt.Errorf("--body is required")
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.Gateway.Process(cmd.Context(), model.ActionRequest{
		ContactID: submitContact,
		Company:   submitCompany,
		Channel:   model.ParseChannel(submitChannel),
		Kind:      model.ActionKind(submitKind),
		Subject:   submitSubject,
		Body:      body,
	})
	if err != nil {
		return err
	}

	if submitJSON {
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("%s  %s\n", rec.Status, rec.ID)
	if rec.Reason != "" {
		fmt.Printf("reason: %s\n", rec.Reason)
	}
	if rec.Risk.OverallRisk != model.SeverityNone {
		fmt.Printf("risk: %s", rec.Risk.OverallRisk)
		if rec.Risk.Recommendation != "" {
			fmt.Printf(" (%s)", rec.Risk.Recommendation)
		}
		fmt.Println()
	}
	for _, r := range rec.Safeguard.Recommendations {
		fmt.Printf("note: %s\n", r)
	}
	return nil
}
