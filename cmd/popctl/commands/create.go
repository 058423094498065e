package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/popsmart/campaign-engine/internal/campaign"
	"github.com/popsmart/campaign-engine/internal/client"
)

var createCmd = &cobra.Command{
	Use:   "create <campaign.json>",
	Short: "Create or update a campaign from a JSON file",
	Long: `Create or update a campaign from a JSON definition.

The file must contain a single campaign object. An existing campaign
with the same id is updated.

Example:
  popctl create summer-sale.json --api-key $ADMIN_KEY`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		var cmp campaign.Campaign
		if err := json.Unmarshal(data, &cmp); err != nil {
			return fmt.Errorf("invalid campaign JSON: %w", err)
		}

		c := client.NewClient(baseURL, apiKey)
		if err := c.UpsertCampaign(context.Background(), cmp); err != nil {
			return fmt.Errorf("failed to upsert campaign: %w", err)
		}

		fmt.Printf("Campaign %q saved\n", cmp.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
