package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zomco/hubot-heyodo/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize heyodo configuration",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.GetConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
	} else {
		if err := config.Save(config.DefaultConfig(), ""); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}
		fmt.Printf("✓ Created config at %s\n", configPath)
	}

	fmt.Println("\n🤖 heyodo is ready!")
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Add your bot token to %s\n", configPath)
	fmt.Println("  2. Run: heyodo run")

	return nil
}
