package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/ahccd"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var scenariosOutput string

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the AHCCD scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch scenariosOutput {
		case "text":
			return printScenarios(cmd.OutOrStdout(), ahccd.Catalog())
		case "yaml":
			return writeScenariosYAML(cmd.OutOrStdout(), ahccd.Catalog())
		default:
			return fmt.Errorf("unknown output format %q (must be text or yaml)", scenariosOutput)
		}
	},
}

func init() {
	scenariosCmd.Flags().StringVarP(&scenariosOutput, "output", "o", "text", "Output format: text or yaml")
}

func printScenarios(w io.Writer, scenarios []ahccd.Scenario) error {
	for _, s := range scenarios {
		if _, err := fmt.Fprintf(w, "%-18s %-15s %s\n  %s\n", s.Name, s.Collection, strings.Join(bounds(s), ", "), s.Description); err != nil {
			return err
		}
	}
	return nil
}

func bounds(s ahccd.Scenario) []string {
	var out []string
	if s.Features != nil {
		out = append(out, "features "+s.Features.String())
	}
	if s.Count != nil {
		out = append(out, "numberMatched "+s.Count.String())
	}
	if s.Download != nil {
		out = append(out, "download "+string(s.Download.Format))
	}
	return out
}

// scenarioView is the YAML shape of a listed scenario.
type scenarioView struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Collection  string            `yaml:"collection"`
	Checks      []string          `yaml:"checks"`
	Stations    []string          `yaml:"stations,omitempty"`
	Filters     map[string]string `yaml:"filters,omitempty"`
	BBox        []float64         `yaml:"bbox,omitempty,flow"`
	Datetime    string            `yaml:"datetime,omitempty"`
}

func writeScenariosYAML(w io.Writer, scenarios []ahccd.Scenario) error {
	views := make([]scenarioView, 0, len(scenarios))
	for _, s := range scenarios {
		v := scenarioView{
			Name:        s.Name,
			Description: s.Description,
			Collection:  s.Collection,
			Checks:      bounds(s),
			Stations:    s.Stations,
			Filters:     s.Filter.Properties,
			BBox:        s.Filter.BBox,
			Datetime:    s.Filter.Datetime,
		}
		views = append(views, v)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(views); err != nil {
		return fmt.Errorf("failed to encode scenarios: %w", err)
	}
	return enc.Close()
}
