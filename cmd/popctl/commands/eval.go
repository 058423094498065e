package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popsmart/campaign-engine/internal/client"
)

var (
	evalVisitorID  string
	evalPageType   string
	evalPageURL    string
	evalDeviceType string
	evalSessionID  string
	evalSegments   string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Dry-run the admission pipeline for a synthetic visitor",
	Long: `Run the widget admission endpoint with a synthetic visitor context
and print the campaigns that would be shown, in rank order.

Examples:
  popctl eval --store myshop.example.com --page-url https://myshop.example.com/
  popctl eval --store myshop.example.com --visitor v-123 --device mobile`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if storeID == "" {
			return fmt.Errorf("--store is required")
		}

		c := client.NewClient(baseURL, apiKey)
		results, err := c.Evaluate(context.Background(), map[string]string{
			"shop":       storeID,
			"visitorId":  evalVisitorID,
			"pageType":   evalPageType,
			"pageUrl":    evalPageURL,
			"deviceType": evalDeviceType,
			"sessionId":  evalSessionID,
			"segments":   evalSegments,
		})
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}

		if len(results) == 0 {
			fmt.Println("No campaigns admitted")
			return nil
		}

		return PrintEvalResults(results, OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalVisitorID, "visitor", "", "Visitor id (default: server-issued)")
	evalCmd.Flags().StringVar(&evalPageType, "page-type", "", "Page type (home, product, cart, ...)")
	evalCmd.Flags().StringVar(&evalPageURL, "page-url", "", "Full page URL")
	evalCmd.Flags().StringVar(&evalDeviceType, "device", "", "Device type (desktop, mobile)")
	evalCmd.Flags().StringVar(&evalSessionID, "session", "", "Session id")
	evalCmd.Flags().StringVar(&evalSegments, "segments", "", "Comma-separated audience segments")
}
