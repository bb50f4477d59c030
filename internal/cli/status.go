package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/policy"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "One-screen engine snapshot",
	Long:  "Shows the mode level, kill-switch, step mode, today's outreach volume\nagainst the daily cap, and the pending queue depth.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	snap := e.Controller.Snapshot()

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sentToday, err := e.History.CountAllSince(midnight)
	if err != nil {
		return fmt.Errorf("failed to count today's outreach: %w", err)
	}

	pending, err := e.Gateway.ListPending()
	if err != nil {
		return fmt.Errorf("failed to list pending records: %w", err)
	}

	stepState := "off"
	if snap.StepMode {
		stepState = "on"
	}

	fmt.Printf("mode:        %d (%s)\n", snap.Level, policy.LevelName(snap.Level))
	fmt.Printf("kill-switch: %s\n", snap.KillSwitch)
	fmt.Printf("step mode:   %s\n", stepState)
	fmt.Printf("policy:      version %d, config %s\n", snap.Version, truncate(e.ConfigHash, 19))
	fmt.Printf("today:       %d/%d sent\n", sentToday, snap.Parameters.DailyOutreachCap)
	fmt.Printf("pending:     %d awaiting approval\n", len(pending))
	return nil
}
