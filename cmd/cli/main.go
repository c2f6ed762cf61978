package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"overcount/app"
	"overcount/internal/archive"
	"overcount/internal/config"
	"overcount/internal/glm"
	"overcount/internal/simulate"
	"overcount/ui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "overcount",
		Short: "Simulate overdispersed counts, fit count regressions, and report the damage",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newSimulateCmd(),
		newFitCmd(),
		newCoverageCmd(),
		newArchiveCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// simFlags collects the generator settings shared by several commands.
type simFlags struct {
	seed         int64
	n            int
	intercept    float64
	slope        float64
	sizeModerate float64
	sizeStrong   float64
	configFile   string
}

func addSimFlags(cmd *cobra.Command, f *simFlags) {
	cmd.Flags().Int64Var(&f.seed, "seed", 123456, "Random seed for the simulated draw")
	cmd.Flags().IntVar(&f.n, "n", 1000, "Number of observations")
	cmd.Flags().Float64Var(&f.intercept, "intercept", 0.5, "True intercept on the log scale")
	cmd.Flags().Float64Var(&f.slope, "slope", -1, "True slope on the log scale")
	cmd.Flags().Float64Var(&f.sizeModerate, "size-moderate", 0.5, "Size of the moderately overdispersed response")
	cmd.Flags().Float64Var(&f.sizeStrong, "size-strong", 0.05, "Size of the strongly overdispersed response")
	cmd.Flags().StringVar(&f.configFile, "config", "", "YAML file with generator settings")
}

// resolveSim layers the generator settings: defaults, then the YAML
// file (env or flag), then SIM_SEED, then explicit flags.
func resolveSim(cmd *cobra.Command, f *simFlags, appCfg *config.Config) (simulate.Config, error) {
	sim := simulate.DefaultConfig()

	path := appCfg.Sim.ConfigFile
	if cmd.Flags().Changed("config") {
		path = f.configFile
	}
	if path != "" {
		loaded, err := simulate.LoadConfig(path)
		if err != nil {
			return sim, err
		}
		sim = loaded
	}

	if appCfg.Sim.Seed != 0 {
		sim.Seed = appCfg.Sim.Seed
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		sim.Seed = f.seed
	}
	if flags.Changed("n") {
		sim.N = f.n
	}
	if flags.Changed("intercept") {
		sim.Intercept = f.intercept
	}
	if flags.Changed("slope") {
		sim.Slope = f.slope
	}
	if flags.Changed("size-moderate") {
		sim.SizeModerate = f.sizeModerate
	}
	if flags.Changed("size-strong") {
		sim.SizeStrong = f.sizeStrong
	}

	return sim, nil
}

func loadAppConfig() (*config.Config, error) {
	// Optional .env support, matching the server entrypoint
	_ = godotenv.Load()
	return config.Load()
}

func openStore(appCfg *config.Config) (*archive.Store, error) {
	if !appCfg.Archive.Enabled {
		return nil, nil
	}
	return archive.NewStore(appCfg.Archive.Path)
}

func newRunCmd() *cobra.Command {
	var flags simFlags
	var noArchive bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: simulate, fit, score, and write the report",
		Long: `Simulate the three count responses, fit the matching regressions,
compute pseudo-R² against intercept-only nulls, render the figures, and
write the HTML report. The run is archived unless disabled.

Example: overcount run --seed 123456 --n 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			sim, err := resolveSim(cmd, &flags, appCfg)
			if err != nil {
				return err
			}

			var store *archive.Store
			if !noArchive {
				if store, err = openStore(appCfg); err != nil {
					return err
				}
				if store != nil {
					defer store.Close()
				}
			}

			svc := app.NewReportService(appCfg, store, nil)
			result, err := svc.Run(cmd.Context(), app.ReportRequest{Sim: sim})
			if err != nil {
				return err
			}

			fmt.Printf("Report: %s\n", result.ReportPath)
			fmt.Printf("Dataset fingerprint: %s\n", result.Fingerprint)
			if result.RunID != "" {
				fmt.Printf("Archived as: %s\n", result.RunID)
			}
			fmt.Printf("\n%-16s %-10s %-10s %-12s\n", "Model", "McFadden", "CoxSnell", "Nagelkerke")
			for _, g := range result.Gof {
				fmt.Printf("%-16s %-10.4f %-10.4f %-12.4f\n", g.Model, g.McFadden, g.CoxSnell, g.Nagelkerke)
			}
			fmt.Printf("\nDone in %dms\n", result.RuntimeMs)
			return nil
		},
	}

	addSimFlags(cmd, &flags)
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "Skip archiving this run")

	return cmd
}

func newSimulateCmd() *cobra.Command {
	var flags simFlags
	var xlsx bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate the dataset and write it to the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			sim, err := resolveSim(cmd, &flags, appCfg)
			if err != nil {
				return err
			}
			if err := sim.Validate(); err != nil {
				return err
			}

			ds, err := simulate.Generate(sim)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(appCfg.Output.Dir, 0o755); err != nil {
				return err
			}

			csvPath := filepath.Join(appCfg.Output.Dir, "counts.csv")
			if err := simulate.WriteCSV(csvPath, ds); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%d rows)\n", csvPath, sim.N)

			if xlsx || appCfg.Output.WriteXLSX {
				xlsxPath := filepath.Join(appCfg.Output.Dir, "counts.xlsx")
				if err := simulate.WriteXLSX(xlsxPath, ds); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", xlsxPath)
			}

			data, err := simulate.CSVBytes(ds)
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", archive.Fingerprint(data))
			return nil
		},
	}

	addSimFlags(cmd, &flags)
	cmd.Flags().BoolVar(&xlsx, "xlsx", false, "Also write an XLSX copy")

	return cmd
}

func newFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit [counts.csv]",
		Short: "Refit the three regressions on a previously written dataset",
		Long: `Read a dataset written by the simulate or run command and refit the
regressions: Poisson for the poisson column, negative binomial with
profiled dispersion for the other two. Prints the coefficient tables.

Example: overcount fit out/counts.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(args[0])
		},
	}

	return cmd
}

func runFit(path string) error {
	ds, err := simulate.ReadCSV(path)
	if err != nil {
		return err
	}

	icept := make([]float64, len(ds.X))
	for i := range icept {
		icept[i] = 1
	}
	predictors := []string{"icept", "x"}

	for _, proc := range ds.Processes() {
		data := [][]float64{proc.Y, icept, ds.X}
		names := []string{proc.Name, "icept", "x"}

		fmt.Printf("=== %s ===\n", proc.Name)

		if proc.Size == 0 {
			cfg := glm.DefaultConfig()
			cfg.Family = glm.NewPoissonFamily()
			model, err := glm.New(data, names, proc.Name, predictors, cfg)
			if err != nil {
				return err
			}
			rslt, err := model.Fit()
			if err != nil {
				return err
			}
			fmt.Println(rslt.Summary())
			continue
		}

		rslt, prof, err := glm.FitNegBinom(data, names, proc.Name, predictors)
		if err != nil {
			return err
		}
		fmt.Println(rslt.Summary())

		if lower, upper, err := prof.ConfInt(0.95); err == nil {
			fmt.Printf("alpha %.4f  95%% profile interval [%.4f, %.4f]\n\n",
				prof.DispersionMLE(), lower, upper)
		} else {
			fmt.Printf("alpha %.4f  (profile interval unavailable: %v)\n\n",
				prof.DispersionMLE(), err)
		}
	}

	return nil
}

func newCoverageCmd() *cobra.Command {
	var flags simFlags
	var replications, workers int
	var level float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Replicate the pipeline across seeds and tally interval coverage",
		Long: `Rerun the simulation and fits across consecutive seeds, then report
how often the confidence intervals cover the generating values and how
often the pseudo-R² ordering across the responses holds.

Example: overcount coverage --replications 200 --n 500 --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			sim, err := resolveSim(cmd, &flags, appCfg)
			if err != nil {
				return err
			}

			svc := app.NewCoverageService(nil)
			result, err := svc.Run(cmd.Context(), app.CoverageRequest{
				Sim:          sim,
				Replications: replications,
				Level:        level,
				Workers:      workers,
			})
			if err != nil {
				return err
			}

			if asJSON {
				out, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("Coverage over %d replications at level %.2f\n\n", result.Replications, result.Level)
			fmt.Printf("%-16s %-8s %-10s %-8s\n", "Model", "Param", "Covered", "Rate")
			for _, row := range result.Coverage {
				fmt.Printf("%-16s %-8s %d/%-8d %-8.3f\n", row.Model, row.Param, row.Covered, row.Total, row.Rate)
			}
			fmt.Printf("\n%-16s %-14s\n", "Model", "Mean McFadden")
			for _, p := range result.Power {
				fmt.Printf("%-16s %-14.4f\n", p.Model, p.MeanMcFadden)
			}
			fmt.Printf("\nPseudo-R² ordering held in %d/%d replications\n",
				result.OrderingHeld, result.Replications)
			fmt.Printf("Done in %dms\n", result.RuntimeMs)
			return nil
		},
	}

	addSimFlags(cmd, &flags)
	cmd.Flags().IntVar(&replications, "replications", 100, "Number of replications")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent replications")
	cmd.Flags().Float64Var(&level, "level", 0.95, "Confidence level to check")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the result as JSON")

	return cmd
}

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and export archived runs",
	}

	cmd.AddCommand(newArchiveListCmd(), newArchiveShowCmd(), newArchiveExportCmd())
	return cmd
}

func withStore(fn func(ctx context.Context, store *archive.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		store, err := archive.NewStore(appCfg.Archive.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd.Context(), store)
	}
}

func newArchiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, store *archive.Store) error {
			runs, err := store.ListRuns(ctx)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No archived runs.")
				return nil
			}

			fmt.Printf("%-36s %-28s %-10s %-6s %s\n", "ID", "Created", "Seed", "n", "Fingerprint")
			for _, run := range runs {
				fmt.Printf("%-36s %-28s %-10d %-6d %s\n", run.ID, run.CreatedAt, run.Seed, run.N, run.Fingerprint)
			}
			return nil
		}),
	}
}

func newArchiveShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print one run's settings, coefficients, and pseudo-R² as JSON",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *archive.Store) error {
			rec, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			view := map[string]interface{}{
				"id":          rec.ID,
				"created_at":  rec.CreatedAt,
				"fingerprint": rec.Fingerprint,
				"config":      rec.Config,
				"fits":        rec.Fits,
				"gof":         rec.Gof,
			}
			out, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})(c, args)
	}
	return cmd
}

func newArchiveExportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Write one run's archived dataset and report to disk",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory to write into")
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *archive.Store) error {
			rec, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			csvPath := filepath.Join(outDir, fmt.Sprintf("counts_%s.csv", rec.ID[:8]))
			if err := os.WriteFile(csvPath, rec.DatasetCSV, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", csvPath)

			if len(rec.ReportHTML) > 0 {
				htmlPath := filepath.Join(outDir, fmt.Sprintf("report_%s.html", rec.ID[:8]))
				if err := os.WriteFile(htmlPath, rec.ReportHTML, 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", htmlPath)
			}
			return nil
		})(c, args)
	}
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report and run archive over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadAppConfig()
			if err != nil {
				return err
			}

			store, err := archive.NewStore(appCfg.Archive.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			webApp, err := ui.NewApp(ui.Config{
				Store:      store,
				OutputDir:  appCfg.Output.Dir,
				ReportFile: appCfg.Output.ReportFile,
			})
			if err != nil {
				return err
			}

			return webApp.Start(":"+appCfg.Server.Port,
				appCfg.Server.ReadTimeout, appCfg.Server.WriteTimeout)
		},
	}

	return cmd
}
