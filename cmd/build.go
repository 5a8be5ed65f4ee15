package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/pipeline"
)

var buildFlags runFlags

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Write one geometry file with merged metrics per date",
	RunE: func(cmd *cobra.Command, args []string) error {
		buildFlags.apply(cfg)
		if err := cfg.Validate("build"); err != nil {
			return err
		}
		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		ds, err := p.Load(cmd.Context())
		if err != nil {
			return err
		}
		tps := p.Timepoints(ds)
		if len(tps) == 0 {
			return eris.Errorf("build: no dates between %q and %q", cfg.Pipeline.Start, cfg.Pipeline.End)
		}

		res := p.NewResult()
		if err := p.Build(cmd.Context(), ds, tps, res); err != nil {
			return err
		}
		res.Log(zap.L().With(zap.String("run_id", p.RunID())))
		return failedDates(res)
	},
}

// failedDates turns recorded per-date failures into a non-zero exit.
func failedDates(res *pipeline.Result) error {
	if n := len(res.Failures()); n > 0 {
		return eris.Errorf("%d failures, first: %v", n, res.Failures()[0])
	}
	return nil
}

func init() {
	buildFlags.register(buildCmd, false, true)
	rootCmd.AddCommand(buildCmd)
}
