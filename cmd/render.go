package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/pipeline"
)

var (
	renderFlags          runFlags
	renderSkipScreenshot bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render map pages and screenshots from the built geometry files",
	RunE: func(cmd *cobra.Command, args []string) error {
		renderFlags.apply(cfg)
		if renderSkipScreenshot {
			cfg.Render.SkipScreenshot = true
		}
		if err := cfg.Validate("render"); err != nil {
			return err
		}
		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		tps, err := p.BuiltTimepoints()
		if err != nil {
			return err
		}
		if len(tps) == 0 {
			return eris.Errorf("render: no geometry files in %s (run build first)", cfg.Paths.Clean)
		}

		res := p.NewResult()
		if err := p.Render(cmd.Context(), tps, res); err != nil {
			return err
		}
		res.Log(zap.L().With(zap.String("run_id", p.RunID())))
		return failedDates(res)
	},
}

func init() {
	renderFlags.register(renderCmd, true, false)
	renderCmd.Flags().BoolVar(&renderSkipScreenshot, "html-only", false, "write the pages without screenshots")
	rootCmd.AddCommand(renderCmd)
}
