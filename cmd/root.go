package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "covidmap",
	Short: "County-level COVID-19 choropleth pipeline",
	Long:  "Downloads USAFacts county tables and Census boundaries, computes per-county metrics for every date, renders one choropleth per metric and date, and stitches each map family into an animation.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
