package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/policy"
)

var modeActor string

func init() {
	rootCmd.AddCommand(modeCmd)
	modeCmd.AddCommand(modeGetCmd)
	modeCmd.AddCommand(modeSetCmd)
	modeSetCmd.Flags().StringVar(&modeActor, "actor", "", "Acting operator")
	modeSetCmd.MarkFlagRequired("actor")
}

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Inspect or change the aggressiveness level",
	Long:  "The mode level (1 = gandhi ... 6 = genghis) scales every outreach\nthreshold. Higher levels always relax; they never bypass the kill-switch.",
}

var modeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current level and its parameters",
	RunE:  runModeGet,
}

var modeSetCmd = &cobra.Command{
	Use:   "set <level>",
	Short: "Change the level (1-6)",
	Args:  cobra.ExactArgs(1),
	RunE:  runModeSet,
}

func runModeGet(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	snap := e.Controller.Snapshot()
	p := snap.Parameters
	fmt.Printf("level %d (%s), policy version %d\n", snap.Level, policy.LevelName(snap.Level), snap.Version)
	fmt.Printf("  daily outreach cap:       %d\n", p.DailyOutreachCap)
	fmt.Printf("  min days between msgs:    %d\n", p.MinDaysBetweenContactMessages)
	fmt.Printf("  per-contact weekly max:   %d\n", p.MaxMessagesPerContactPerWeek)
	fmt.Printf("  per-company weekly max:   %d\n", p.MaxMessagesPerCompanyPerWeek)
	fmt.Printf("  engagement decay floor:   %.2f\n", p.EngagementDecayThreshold)
	fmt.Printf("  overcommunication check:  %v\n", p.OvercommunicationDetection)
	fmt.Printf("  strictness:               %s\n", p.Strictness)
	return nil
}

func runModeSet(cmd *cobra.Command, args []string) error {
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("level must be a number 1-6: %w", err)
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	change, err := e.Controller.SetMode(policy.Level(level), modeActor)
	if err != nil {
		return err
	}
	if err := e.SaveState(); err != nil {
		return err
	}

	fmt.Printf("mode %d (%s) -> %d (%s)\n",
		change.Previous, policy.LevelName(change.Previous),
		change.Current, policy.LevelName(change.Current))
	return nil
}
