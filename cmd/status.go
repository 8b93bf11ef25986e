package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zomco/hubot-heyodo/internal/config"
	redisconn "github.com/zomco/hubot-heyodo/internal/redis"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show heyodo configuration status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	configPath := config.GetConfigPath()
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("🤖 heyodo Status")
	fmt.Println()
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Bot name: %s\n", cfg.Bot.Name)
	if cfg.Bot.Token != "" {
		fmt.Println("Token: ✓")
	} else {
		fmt.Println("Token: not set")
	}

	fmt.Println("\nWatchdog:")
	if cfg.Warn.Enabled {
		fmt.Printf("  Mode: %s (threshold %.2f)\n", cfg.Warn.Mode, cfg.Warn.Threshold)
		fmt.Printf("  Redact on relay: %v\n", cfg.Warn.RedactOnRelay)
	} else {
		fmt.Println("  Disabled")
	}

	fmt.Println("\nRelay:")
	fmt.Printf("  User relay: %v\n", cfg.Relay.EnableUserRelay)
	fmt.Printf("  Impersonation: %v\n", cfg.Relay.Impersonation)
	fmt.Printf("  Session TTL: %d minutes\n", cfg.Session.TTLMinutes)

	fmt.Println("\nSession store:")
	if client := redisconn.Connect(cfg.Redis); client != nil {
		fmt.Println("  Redis: ✓")
		client.Close()
	} else if cfg.Redis.URL != "" {
		fmt.Println("  Redis: configured but unreachable (falls back to memory)")
	} else {
		fmt.Println("  Memory")
	}

	return nil
}
