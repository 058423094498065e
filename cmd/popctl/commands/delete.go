package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popsmart/campaign-engine/internal/client"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <campaign-id>",
	Short: "Delete a campaign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient(baseURL, apiKey)
		if err := c.DeleteCampaign(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete campaign: %w", err)
		}
		fmt.Printf("Campaign %q deleted\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
