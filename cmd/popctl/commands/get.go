package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/popsmart/campaign-engine/internal/client"
)

var getCmd = &cobra.Command{
	Use:   "get <campaign-id>",
	Short: "Get a single campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if storeID == "" {
			return fmt.Errorf("--store is required")
		}

		c := client.NewClient(baseURL, apiKey)
		cmp, err := c.GetCampaign(context.Background(), storeID, args[0])
		if err != nil {
			return fmt.Errorf("failed to get campaign: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
