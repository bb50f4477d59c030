package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/config"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the sendwatch configuration",
	Long:  "Creates the data directory and writes a commented default config.\nExisting files are left alone unless --force is given.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Printf("Config already exists at %s (use --force to overwrite)\n", path)
		return nil
	}

	if err := os.WriteFile(path, []byte(config.DefaultConfigYAML()), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set `operator:` to your name — only that actor can approve or change policy")
	fmt.Println("  2. sendwatch status")
	fmt.Println("  3. sendwatch killswitch set TEST --actor <operator>   # when ready")
	return nil
}
