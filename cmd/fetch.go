package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/covidmap/internal/pipeline"
)

var fetchSkipBoundary bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the source tables and county boundaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}
		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}
		return p.Fetch(cmd.Context(), !fetchSkipBoundary)
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchSkipBoundary, "skip-boundary", false, "download only the case, death and population tables")
	rootCmd.AddCommand(fetchCmd)
}
