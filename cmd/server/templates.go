package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"crm-pipeline/internal/services/column"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func templatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the lane templates",
		Long: `List the lane templates new tenants and from-template lanes are built from.

Baseline templates become the system lanes of every tenant.

Examples:
  crm-pipeline templates
  crm-pipeline templates --file ./lanes.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")

			catalog := column.DefaultCatalog()
			if path != "" {
				var err error
				if catalog, err = column.LoadCatalogFile(path); err != nil {
					return err
				}
			}

			displayTemplates(catalog.All())
			return nil
		},
	}

	cmd.Flags().String("file", os.Getenv("COLUMN_TEMPLATES_FILE"), "YAML file overriding the built-in templates")
	return cmd
}

func displayTemplates(templates []column.Template) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPIPELINE\tSTATUS\tKIND")
	for _, tpl := range templates {
		kind := color.New(color.FgCyan).Sprint("optional")
		if tpl.Baseline {
			kind = color.New(color.FgGreen).Sprint("system")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tpl.Code, tpl.Name, tpl.Pipeline, tpl.Status, kind)
	}
	_ = w.Flush()
}
