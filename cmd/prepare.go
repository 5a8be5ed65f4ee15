package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/pipeline"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Normalize the county boundary file into the geometry template",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("prepare"); err != nil {
			return err
		}
		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}
		report, err := p.Prepare(cmd.Context())
		if err != nil {
			return err
		}
		if report.Unidentified > 0 || report.BadGeometry > 0 {
			zap.L().Warn("boundary file has unusable features",
				zap.Int("unidentified", report.Unidentified),
				zap.Int("bad_geometry", report.BadGeometry),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}
