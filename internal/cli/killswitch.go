package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/model"
)

var killSwitchActor string

func init() {
	rootCmd.AddCommand(killSwitchCmd)
	killSwitchCmd.AddCommand(killSwitchGetCmd)
	killSwitchCmd.AddCommand(killSwitchSetCmd)
	killSwitchSetCmd.Flags().StringVar(&killSwitchActor, "actor", "", "Acting operator")
	killSwitchSetCmd.MarkFlagRequired("actor")
}

var killSwitchCmd = &cobra.Command{
	Use:   "killswitch",
	Short: "Inspect or change the delivery gate",
	Long:  "SAFE: everything queues for approval. TEST: only internal-channel\nactions auto-send. LIVE: low-risk actions auto-send per strictness.\nThe kill-switch overrides the mode level in every state.",
}

var killSwitchGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current kill-switch state",
	RunE:  runKillSwitchGet,
}

var killSwitchSetCmd = &cobra.Command{
	Use:   "set <SAFE|TEST|LIVE>",
	Short: "Change the kill-switch state",
	Args:  cobra.ExactArgs(1),
	RunE:  runKillSwitchSet,
}

func runKillSwitchGet(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	fmt.Println(e.Controller.Snapshot().KillSwitch)
	return nil
}

func runKillSwitchSet(cmd *cobra.Command, args []string) error {
	state := strings.ToUpper(args[0])
	switch model.KillSwitch(state) {
	case model.KillSwitchSafe, model.KillSwitchTest, model.KillSwitchLive:
	default:
		return fmt.Errorf("unknown kill-switch state %q (want SAFE, TEST, or LIVE)", args[0])
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Controller.SetKillSwitch(model.KillSwitch(state), killSwitchActor); err != nil {
		return err
	}
	if err := e.SaveState(); err != nil {
		return err
	}

	fmt.Printf("kill-switch: %s\n", state)
	return nil
}
