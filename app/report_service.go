// Package app wires the pipeline stages together: simulate, fit,
// score, plot, render, archive. Services own orchestration and
// logging; the stage packages stay free of each other.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"overcount/internal"
	"overcount/internal/archive"
	"overcount/internal/config"
	apperrors "overcount/internal/errors"
	"overcount/internal/gof"
	"overcount/internal/plots"
	"overcount/internal/report"
	"overcount/internal/simulate"
)

// ReportService runs the full pipeline and writes the report.
type ReportService struct {
	cfg    *config.Config
	store  *archive.Store
	logger *internal.Logger
}

// ReportRequest defines the inputs for one report run.
type ReportRequest struct {
	Sim simulate.Config
}

// ReportResult summarizes a completed run.
type ReportResult struct {
	RunID       string       `json:"run_id,omitempty"`
	ReportPath  string       `json:"report_path"`
	Fingerprint string       `json:"fingerprint"`
	Gof         []gof.Result `json:"gof"`
	RuntimeMs   int64        `json:"runtime_ms"`
}

// NewReportService creates a report service. A nil store disables
// archiving.
func NewReportService(cfg *config.Config, store *archive.Store, logger *internal.Logger) *ReportService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ReportService{cfg: cfg, store: store, logger: logger}
}

// Run executes the pipeline end to end.
func (s *ReportService) Run(ctx context.Context, req ReportRequest) (*ReportResult, error) {
	startTime := time.Now()

	if err := req.Sim.Validate(); err != nil {
		return nil, apperrors.ConfigInvalid(err.Error())
	}

	outDir := s.cfg.Output.Dir
	figuresDir := filepath.Join(outDir, "figures")
	if err := os.MkdirAll(figuresDir, 0o755); err != nil {
		return nil, apperrors.ReportError("creating output directories", err)
	}

	// Simulate
	s.logger.Info("Generating dataset: seed=%d n=%d", req.Sim.Seed, req.Sim.N)
	ds, err := simulate.Generate(req.Sim)
	if err != nil {
		return nil, apperrors.SimulationError("generating dataset", err)
	}

	csvBytes, err := simulate.CSVBytes(ds)
	if err != nil {
		return nil, apperrors.SimulationError("encoding dataset", err)
	}
	fingerprint := archive.Fingerprint(csvBytes)
	s.logger.Info("Dataset fingerprint: %s", fingerprint)

	if s.cfg.Output.WriteCSV {
		path := filepath.Join(outDir, "counts.csv")
		if err := os.WriteFile(path, csvBytes, 0o644); err != nil {
			return nil, apperrors.SimulationError("writing dataset CSV", err)
		}
		s.logger.Debug("Wrote %s", path)
	}
	if s.cfg.Output.WriteXLSX {
		path := filepath.Join(outDir, "counts.xlsx")
		if err := simulate.WriteXLSX(path, ds); err != nil {
			return nil, apperrors.SimulationError("writing dataset XLSX", err)
		}
		s.logger.Debug("Wrote %s", path)
	}

	// Fit
	fits, err := fitModels(ds)
	if err != nil {
		return nil, err
	}
	for _, fit := range fits {
		s.logger.Info("Fitted %s: loglike=%.2f iterations=%d",
			fit.Name, fit.Results.LogLike(), fit.Results.NumIter())
	}

	// Score
	gofs, err := s.scoreFits(fits)
	if err != nil {
		return nil, err
	}

	// Figures
	figures, modelFits, err := s.renderFigures(ds, fits, figuresDir)
	if err != nil {
		return nil, err
	}

	// Report
	model, err := report.Build(report.Input{
		Dataset:     ds,
		Fits:        modelFits,
		Gof:         gofs,
		Figures:     figures,
		CILevel:     s.cfg.Output.CILevel,
		Fingerprint: fingerprint,
	})
	if err != nil {
		return nil, err
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return nil, err
	}
	reportHTML, err := renderer.Render(model)
	if err != nil {
		return nil, err
	}

	reportPath := filepath.Join(outDir, s.cfg.Output.ReportFile)
	if err := os.WriteFile(reportPath, reportHTML, 0o644); err != nil {
		return nil, apperrors.ReportError("writing report file", err)
	}
	s.logger.Info("Wrote report to %s", reportPath)

	// Archive
	runID := ""
	if s.store != nil {
		rec := &archive.RunRecord{
			Config:      req.Sim,
			Fingerprint: fingerprint,
			DatasetCSV:  csvBytes,
			ReportHTML:  reportHTML,
			Fits:        fitRows(fits, s.cfg.Output.CILevel),
			Gof:         gofRows(gofs),
		}
		if err := s.store.SaveRun(ctx, rec); err != nil {
			return nil, apperrors.ArchiveError("saving run", err)
		}
		runID = rec.ID
		s.logger.Info("Archived run %s", runID)
	}

	return &ReportResult{
		RunID:       runID,
		ReportPath:  reportPath,
		Fingerprint: fingerprint,
		Gof:         gofs,
		RuntimeMs:   time.Since(startTime).Milliseconds(),
	}, nil
}

// scoreFits computes pseudo-R² for every fit. Warnings are logged at
// debug level and kept out of the report.
func (s *ReportService) scoreFits(fits []fittedModel) ([]gof.Result, error) {
	var out []gof.Result
	for _, fit := range fits {
		g, err := gof.Compute(fit.Name, fit.Results)
		if err != nil {
			return nil, apperrors.GofError(fit.Name, err)
		}
		for _, w := range g.Warnings {
			s.logger.Debug("gof warning for %s: %s", fit.Name, w)
		}
		out = append(out, g)
	}
	return out, nil
}

// renderFigures writes every figure and returns the report-relative
// paths plus the per-model summaries the report needs.
func (s *ReportService) renderFigures(ds *simulate.Dataset, fits []fittedModel, figuresDir string) (report.Figures, []report.ModelFit, error) {
	var figures report.Figures

	histPath := filepath.Join(figuresDir, "histograms.png")
	if err := plots.CountHistograms(ds.Processes(), histPath); err != nil {
		return figures, nil, apperrors.PlotError("histograms", err)
	}
	figures.Histogram = "figures/histograms.png"

	panels := coefPanels(fits, ds.Config, s.cfg.Output.CILevel)
	coefPath := filepath.Join(figuresDir, "coefficients.png")
	if err := plots.CoefficientPanels(panels, coefPath); err != nil {
		return figures, nil, apperrors.PlotError("coefficient panels", err)
	}
	figures.CoefPlot = "figures/coefficients.png"

	modelFits := make([]report.ModelFit, 0, len(fits))
	for _, fit := range fits {
		mf := report.ModelFit{Name: fit.Name, Results: fit.Results}

		if fit.Profiler != nil {
			mf.AlphaMLE = fit.Profiler.DispersionMLE()
			lower, upper, err := fit.Profiler.ConfInt(s.cfg.Output.CILevel)
			if err != nil {
				s.logger.Warn("Dispersion interval for %s failed: %v", fit.Name, err)
			} else {
				mf.AlphaLower = lower
				mf.AlphaUpper = upper
			}

			name := fmt.Sprintf("profile_%s.png", fit.Key)
			path := filepath.Join(figuresDir, name)
			title := fmt.Sprintf("%s dispersion profile", fit.Name)
			if err := plots.ProfileCurve(title, fit.Profiler.Profile, mf.AlphaMLE, path); err != nil {
				return figures, nil, apperrors.PlotError(title, err)
			}
			figures.Profiles = append(figures.Profiles, report.ProfileFigure{
				Title: title,
				Path:  "figures/" + name,
			})
		}

		modelFits = append(modelFits, mf)
	}

	return figures, modelFits, nil
}

// fitRows flattens the fitted coefficients into archive rows.
func fitRows(fits []fittedModel, level float64) []archive.FitRow {
	var rows []archive.FitRow
	for _, fit := range fits {
		params := fit.Results.Params()
		se := fit.Results.StdErr()
		lo, hi := fit.Results.ConfInt(level)
		for i, name := range fit.Results.Names() {
			rows = append(rows, archive.FitRow{
				Model:    fit.Name,
				Param:    name,
				Estimate: params[i],
				StdErr:   se[i],
				Lower:    lo[i],
				Upper:    hi[i],
			})
		}
	}
	return rows
}

// gofRows flattens the pseudo-R² results into archive rows.
func gofRows(gofs []gof.Result) []archive.GofRow {
	rows := make([]archive.GofRow, 0, len(gofs))
	for _, g := range gofs {
		rows = append(rows, archive.GofRow{
			Model:       g.Model,
			McFadden:    g.McFadden,
			CoxSnell:    g.CoxSnell,
			Nagelkerke:  g.Nagelkerke,
			GSquared:    g.GSquared,
			LogLike:     g.LogLike,
			NullLogLike: g.NullLogLike,
		})
	}
	return rows
}
