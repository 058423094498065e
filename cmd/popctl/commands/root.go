package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	storeID string
	format  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "popctl",
	Short: "CLI tool for managing popup campaigns",
	Long: `popctl is a command-line tool for managing popup campaigns in the
campaign-engine service.

It provides commands for creating, reading and deleting campaigns, and
for dry-running the admission pipeline against a synthetic visitor.

Examples:
  popctl list --store myshop.example.com
  popctl get summer-sale --store myshop.example.com
  popctl create campaign.json
  popctl delete summer-sale
  popctl eval --store myshop.example.com --page-url https://myshop.example.com/products/hat`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8080", "API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key")
	rootCmd.PersistentFlags().StringVar(&storeID, "store", "", "Store identifier (shop domain)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
}
