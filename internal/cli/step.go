package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stepActor string

func init() {
	rootCmd.AddCommand(stepCmd)
	stepCmd.AddCommand(stepOnCmd)
	stepCmd.AddCommand(stepOffCmd)
	stepCmd.PersistentFlags().StringVar(&stepActor, "actor", "", "Acting operator")
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Toggle step mode",
	Long:  "With step mode on, every delivery additionally requires `sendwatch confirm`\nwith the literal message content. Auto-send is disabled entirely.",
}

var stepOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Require literal-preview confirmation for every delivery",
	RunE:  func(cmd *cobra.Command, args []string) error { return setStepMode(true) },
}

var stepOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable the confirmation requirement",
	RunE:  func(cmd *cobra.Command, args []string) error { return setStepMode(false) },
}

func setStepMode(enabled bool) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Controller.SetStepMode(enabled, stepActor); err != nil {
		return err
	}
	if err := e.SaveState(); err != nil {
		return err
	}

	if enabled {
		fmt.Println("step mode: on")
	} else {
		fmt.Println("step mode: off")
	}
	return nil
}
