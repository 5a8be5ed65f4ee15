package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/covidmap/internal/config"
)

// runFlags holds per-run overrides shared by the pipeline commands.
type runFlags struct {
	start       string
	end         string
	maps        []string
	concurrency int
	failFast    bool
}

func (f *runFlags) register(cmd *cobra.Command, withMaps, withConcurrency bool) {
	cmd.Flags().StringVar(&f.start, "start", "", "first date to process, YYYYMMDD (default from config)")
	cmd.Flags().StringVar(&f.end, "end", "", "last date to process, YYYYMMDD (default from config)")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "stop at the first failed date")
	if withMaps {
		cmd.Flags().StringSliceVar(&f.maps, "maps", nil, "maps to render (default all)")
	}
	if withConcurrency {
		cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "dates built in parallel (default from config)")
	}
}

// apply overrides cfg with every flag the user set.
func (f *runFlags) apply(c *config.Config) {
	if f.start != "" {
		c.Pipeline.Start = f.start
	}
	if f.end != "" {
		c.Pipeline.End = f.end
	}
	if len(f.maps) > 0 {
		c.Pipeline.Maps = f.maps
	}
	if f.concurrency > 0 {
		c.Pipeline.Concurrency = f.concurrency
	}
	if f.failFast {
		c.Pipeline.FailFast = true
	}
}
