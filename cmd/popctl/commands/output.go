package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/popsmart/campaign-engine/internal/campaign"
	"github.com/popsmart/campaign-engine/internal/client"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintCampaigns outputs campaigns in the specified format
func PrintCampaigns(campaigns []campaign.Campaign, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(campaigns)
	case FormatYAML:
		return printYAML(campaigns)
	case FormatTable:
		return printCampaignTable(campaigns)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintEvalResults outputs dry-run admission results in the specified format
func PrintEvalResults(results []client.EvalResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(results)
	case FormatYAML:
		return printYAML(results)
	case FormatTable:
		return printEvalTable(results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	// Wrap campaign slices in a "campaigns" key for consistency with the API
	if campaigns, ok := data.([]campaign.Campaign); ok {
		return encoder.Encode(map[string][]campaign.Campaign{"campaigns": campaigns})
	}
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printCampaignTable(campaigns []campaign.Campaign) error {
	table := tablewriter.NewWriter(os.Stdout)

	table.Header("ID", "Status", "Priority", "Template", "Experiment", "Variant", "Updated At")

	for _, c := range campaigns {
		experiment := c.ExperimentID
		if len(experiment) > 20 {
			experiment = experiment[:17] + "..."
		}

		table.Append(
			c.ID,
			string(c.Status),
			fmt.Sprintf("%d", c.Priority),
			c.TemplateType,
			experiment,
			c.VariantKey,
			c.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	return table.Render()
}

func printEvalTable(results []client.EvalResult) error {
	table := tablewriter.NewWriter(os.Stdout)

	table.Header("Rank", "ID", "Priority", "Template", "Variant")

	for i, res := range results {
		table.Append(
			fmt.Sprintf("%d", i+1),
			res.ID,
			fmt.Sprintf("%d", res.Priority),
			res.TemplateType,
			res.VariantKey,
		)
	}

	return table.Render()
}
