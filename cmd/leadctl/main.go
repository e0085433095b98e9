// Command leadctl queries and updates leads through the agent's admin API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "leadctl",
	Short:         "Inspect and update tracked leads",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("addr", envOr("LEADTRIAGE_ADDR", "http://127.0.0.1:8080"), "agent base URL")
	rootCmd.PersistentFlags().String("secret", "", "admin JWT secret (defaults to ADMIN_JWT_SECRET)")
	rootCmd.AddCommand(listCmd, statsCmd, showCmd, updateCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
