package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/covidmap/internal/pipeline"
)

var (
	animateMaps   []string
	animateFormat string
	animateFPS    float64
)

var animateCmd = &cobra.Command{
	Use:   "animate",
	Short: "Stitch each map's screenshots into an animation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(animateMaps) > 0 {
			cfg.Pipeline.Maps = animateMaps
		}
		if animateFormat != "" {
			cfg.Animate.Format = animateFormat
		}
		if animateFPS > 0 {
			cfg.Animate.FPS = animateFPS
		}
		if err := cfg.Validate("animate"); err != nil {
			return err
		}
		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		res := p.NewResult()
		if err := p.Animate(cmd.Context(), res); err != nil {
			return err
		}
		for _, path := range res.Animations() {
			zap.L().Info("wrote animation", zap.String("path", path))
		}
		return failedDates(res)
	},
}

func init() {
	animateCmd.Flags().StringSliceVar(&animateMaps, "maps", nil, "maps to animate (default all)")
	animateCmd.Flags().StringVar(&animateFormat, "format", "", "gif or mp4 (default from config)")
	animateCmd.Flags().Float64Var(&animateFPS, "fps", 0, "frames per second (default from config)")
	rootCmd.AddCommand(animateCmd)
}
