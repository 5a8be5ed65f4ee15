package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/covidmap/internal/dataset"
	"github.com/sells-group/covidmap/internal/pipeline"
)

var (
	exportFlags runFlags
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write per-county metrics to an XLSX workbook",
	Long:  "Writes one sheet per date with a row per county. Without --start or --end only the latest date is exported.",
	RunE: func(cmd *cobra.Command, args []string) error {
		exportFlags.apply(cfg)
		if err := cfg.Validate("export"); err != nil {
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
			return eris.Errorf("export: no dates between %q and %q", cfg.Pipeline.Start, cfg.Pipeline.End)
		}
		if cfg.Pipeline.Start == "" && cfg.Pipeline.End == "" {
			tps = tps[len(tps)-1:]
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.Paths.Clean, exportName(tps))
		}
		_, err = p.Export(ds, tps, out)
		return err
	},
}

func exportName(tps []dataset.Timepoint) string {
	if len(tps) == 1 {
		return "CovidMetrics_" + tps[0].String() + ".xlsx"
	}
	return "CovidMetrics_" + tps[0].String() + "_" + tps[len(tps)-1].String() + ".xlsx"
}

func init() {
	exportFlags.register(exportCmd, false, false)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output workbook path (default in paths.clean)")
	rootCmd.AddCommand(exportCmd)
}
