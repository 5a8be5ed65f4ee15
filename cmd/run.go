package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/covidmap/internal/pipeline"
)

var (
	runFlagSet   runFlags
	runFetch     bool
	runNoAnimate bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run prepare, build, render and animate end to end",
	RunE: func(cmd *cobra.Command, args []string) error {
		runFlagSet.apply(cfg)
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		if runFetch {
			if err := cfg.Validate("fetch"); err != nil {
				return err
			}
		}
		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		res, err := p.Run(cmd.Context(), pipeline.RunOptions{
			Fetch:        runFetch,
			WithBoundary: runFetch,
			SkipAnimate:  runNoAnimate,
		})
		if err != nil {
			return err
		}
		return failedDates(res)
	},
}

func init() {
	runFlagSet.register(runCmd, true, true)
	runCmd.Flags().BoolVar(&runFetch, "fetch", false, "download fresh sources before building")
	runCmd.Flags().BoolVar(&runNoAnimate, "no-animate", false, "skip the animation stage")
	rootCmd.AddCommand(runCmd)
}
