package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popsmart/campaign-engine/internal/campaign"
	"github.com/popsmart/campaign-engine/internal/client"
)

var listActiveOnly bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns for a store",
	Long: `List all campaigns for the given store.

Examples:
  popctl list --store myshop.example.com
  popctl list --store myshop.example.com --active-only
  popctl list --store myshop.example.com --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if storeID == "" {
			return fmt.Errorf("--store is required")
		}

		c := client.NewClient(baseURL, apiKey)
		campaigns, err := c.ListCampaigns(context.Background(), storeID)
		if err != nil {
			return fmt.Errorf("failed to list campaigns: %w", err)
		}

		if listActiveOnly {
			var active []campaign.Campaign
			for _, cmp := range campaigns {
				if cmp.Status == campaign.StatusActive {
					active = append(active, cmp)
				}
			}
			campaigns = active
		}

		if len(campaigns) == 0 {
			fmt.Println("No campaigns found")
			return nil
		}
		return PrintCampaigns(campaigns, OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listActiveOnly, "active-only", false, "Show only ACTIVE campaigns")
}
