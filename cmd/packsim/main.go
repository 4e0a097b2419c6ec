package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"packsim/internal/consts"
	"packsim/pkg/analysis"
	"packsim/pkg/cell"
	"packsim/pkg/config"
	"packsim/pkg/pack"
	"packsim/pkg/plot"
	"packsim/pkg/result"
	"packsim/pkg/sweep"
	"packsim/pkg/util"
)

var (
	flagEnvFile string
	flagVerbose bool
	flagPlotDir string
	flagCSV     string
	flagPoints  int
	flagCurrent float64
	flagAmbient float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "packsim",
		Short: "Electro-thermal battery pack discharge simulator",
		Long: `Packsim assembles a series/parallel cell network with interconnect
resistances, drives coupled electro-thermal discharge simulations with
event-based cutoff detection, and sweeps scenario grids (ambient
temperatures x discharge rates) for comparison.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env", "", "path to a .env file with PACKSIM_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "packsim: %v\n", err)
		os.Exit(1)
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the configured scenario grid and print a comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagEnvFile)
			if err != nil {
				return err
			}

			axes := []sweep.Axis{ambientAxis(cfg), rateAxis(cfg)}
			s := sweep.New(baseParams(cfg), axes,
				sweep.WithWorkers(cfg.NProc),
				sweep.WithScenarioTimeout(cfg.ScenarioTimeout))

			sw, err := s.Run(context.Background())
			if err != nil {
				return err
			}

			printSummaries(sw)

			if flagCSV != "" {
				if err := writeCSV(sw, flagCSV, flagPoints); err != nil {
					return err
				}
			}
			if flagPlotDir != "" {
				if err := writePlots(sw, flagPlotDir, flagPoints); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagPlotDir, "plot-dir", "", "directory for comparison plots")
	cmd.Flags().StringVar(&flagCSV, "csv", "", "write the normalized voltage table to this file")
	cmd.Flags().IntVar(&flagPoints, "points", 200, "samples on the normalized comparison axes")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single discharge scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagEnvFile)
			if err != nil {
				return err
			}

			params := baseParams(cfg)
			if cmd.Flags().Changed("current") {
				params.Current = flagCurrent
			}
			if cmd.Flags().Changed("ambient") {
				params.Topology.Ambient = flagAmbient + consts.KELVIN
			}

			ctx := context.Background()
			if cfg.ScenarioTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.ScenarioTimeout)
				defer cancel()
			}

			res, err := analysis.NewDischarge(params).Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("reason:    %s\n", res.Reason)
			fmt.Printf("duration:  %s\n", util.FormatSeconds(res.Duration))
			fmt.Printf("capacity:  %s\n", util.FormatValueFactor(res.CapacityAh, "Ah"))
			fmt.Printf("voltage:   %s\n", util.FormatValueFactor(res.Series.Last("V(pack)"), "V"))
			fmt.Printf("cell temp: %.2f degC\n", res.Series.Last("T(mean)")-consts.KELVIN)
			return nil
		},
	}
	cmd.Flags().Float64Var(&flagCurrent, "current", 0, "pack discharge current (A)")
	cmd.Flags().Float64Var(&flagAmbient, "ambient", 25, "ambient temperature (degC)")
	return cmd
}

func baseParams(cfg config.Config) analysis.Params {
	thermal := cell.Thermal{MassCp: cfg.CellMassCp, HTC: cfg.HTC, Area: cfg.CellArea}
	return analysis.Params{
		Topology: pack.Topology{
			Series:         cfg.Series,
			Parallel:       cfg.Parallel,
			BusbarRes:      cfg.BusbarRes,
			ConnectionRes:  cfg.ConnectionRes,
			Ambient:        cfg.AmbientTempsC[0] + consts.KELVIN,
			InitialSoC:     cfg.InitialSoC,
			CellTempOffset: cfg.CellTempOffset,
		},
		Model:         cell.NewECM(cfg.NominalAh, cfg.InternalRes, thermal),
		Current:       cfg.Rates[0].Current,
		CutoffVoltage: cfg.CutoffVoltage,
		MaxTime:       cfg.MaxSimTime,
		TimeStep:      cfg.TimeStep,
		Thermal:       thermal,
	}
}

func ambientAxis(cfg config.Config) sweep.Axis {
	ax := sweep.Axis{Name: sweep.AxisAmbient}
	for _, tc := range cfg.AmbientTempsC {
		ax.Points = append(ax.Points, sweep.Point{
			Label: strconv.FormatFloat(tc, 'g', -1, 64) + "C",
			Value: tc + consts.KELVIN,
		})
	}
	return ax
}

func rateAxis(cfg config.Config) sweep.Axis {
	ax := sweep.Axis{Name: sweep.AxisRate}
	for _, rt := range cfg.Rates {
		ax.Points = append(ax.Points, sweep.Point{Label: rt.Name, Value: rt.Current})
	}
	return ax
}

func printSummaries(sw *sweep.Result) {
	fmt.Printf("\nSweep %s (%d scenarios):\n", sw.ID, len(sw.Order))
	fmt.Printf("%-32s %-16s %-12s %s\n", "Scenario", "Reason", "Duration", "Capacity")
	fmt.Println("--------------------------------------------------------------------------")
	for _, s := range result.Summaries(sw) {
		if s.Reason == "" {
			fmt.Printf("%-32s failed: %s\n", s.Key, s.Err)
			continue
		}
		fmt.Printf("%-32s %-16s %-12s %s\n", s.Key, s.Reason,
			util.FormatSeconds(s.Duration), util.FormatValueFactor(s.CapacityAh, "Ah"))
	}
}

func writeCSV(sw *sweep.Result, path string, points int) error {
	tbl, err := result.OnNormalizedTime(sw, "V(pack)", points)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(append([]string{tbl.AxisName}, tbl.Keys...)); err != nil {
		return err
	}
	row := make([]string, len(tbl.Keys)+1)
	for r, x := range tbl.Axis {
		row[0] = strconv.FormatFloat(x, 'g', 8, 64)
		for c := range tbl.Keys {
			row[c+1] = strconv.FormatFloat(tbl.Data.At(r, c), 'g', 8, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func writePlots(sw *sweep.Result, dir string, points int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	vq, err := result.OnCapacityAxis(sw, "V(pack)", points)
	if err != nil {
		return err
	}
	if err := plot.Comparison(vq, "Voltage vs Discharge Capacity",
		"Discharge Capacity (Ah)", "Voltage (V)", filepath.Join(dir, "voltage_capacity.png")); err != nil {
		return err
	}

	panels := []struct {
		variable, title, ylabel, file string
	}{
		{"SOC(mean)", "State of Charge vs Time", "SoC", "soc_time.png"},
		{"T(mean)", "Cell Temperature vs Time", "Temperature (K)", "temperature_time.png"},
		{"Q(pack)", "Discharge Capacity vs Time", "Capacity (Ah)", "capacity_time.png"},
	}
	for _, p := range panels {
		tbl, err := result.OnNormalizedTime(sw, p.variable, points)
		if err != nil {
			return err
		}
		if err := plot.Comparison(tbl, p.title, "t/t_end", p.ylabel, filepath.Join(dir, p.file)); err != nil {
			return err
		}
	}
	return nil
}
