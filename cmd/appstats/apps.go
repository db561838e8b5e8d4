package main

import (
	"fmt"
	"io"

	"github.com/aluiziolira/go-wayback-appstats/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newAppsCmd(c *cli) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List the app catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asYAML {
				return writeCatalogYAML(cmd.OutOrStdout(), c.cfg.Apps)
			}
			writeCatalogTable(cmd.OutOrStdout(), c.cfg.Apps)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the catalog as a config file fragment")
	return cmd
}

func writeCatalogTable(out io.Writer, apps []models.AppEntry) {
	t := newTable(out)
	t.AppendHeader(table.Row{"#", "App", "URL"})
	for i, app := range apps {
		t.AppendRow(table.Row{i + 1, app.Name, app.URL})
	}
	t.Render()
}

func writeCatalogYAML(out io.Writer, apps []models.AppEntry) error {
	doc := struct {
		Apps []models.AppEntry `yaml:"apps"`
	}{Apps: apps}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}
