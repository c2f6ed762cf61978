// Package report assembles the rendered HTML report: descriptive
// summaries of the simulated draws, per-model coefficient tables,
// the pseudo-R² comparison, and the figures produced by the plots
// package.
package report

import (
	"fmt"
	"html/template"
	"time"

	"github.com/montanaflynn/stats"

	"overcount/internal/glm"
	"overcount/internal/gof"
	"overcount/internal/simulate"
)

// Section is one table-of-contents entry.
type Section struct {
	ID    string
	Title string
}

// ProcessSummary is the descriptive row for one response column.
type ProcessSummary struct {
	Name         string
	Label        string
	Mean         float64
	Variance     float64
	VarMeanRatio float64
	Median       float64
	Max          float64
	ZeroShare    float64
}

// CoefRow is one line of a coefficient table.
type CoefRow struct {
	Name     string
	Estimate float64
	StdErr   float64
	Z        float64
	P        float64
	Lower    float64
	Upper    float64
}

// FitSummary is everything shown for one fitted model.
type FitSummary struct {
	Name       string
	Family     string
	LogLike    float64
	Deviance   float64
	Iterations int

	// Dispersion details, negative binomial fits only
	Alpha      float64
	Size       float64
	AlphaLower float64
	AlphaUpper float64

	Coefs []CoefRow
}

// GofEntry is one line of the pseudo-R² table. Warnings raised while
// computing the measures are intentionally not carried here.
type GofEntry struct {
	Model       string
	McFadden    float64
	CoxSnell    float64
	Nagelkerke  float64
	GSquared    float64
	LogLike     float64
	NullLogLike float64
}

// ProfileFigure names one rendered dispersion profile.
type ProfileFigure struct {
	Title string
	Path  string
}

// Figures holds report-relative paths of the rendered images.
type Figures struct {
	Histogram string
	CoefPlot  string
	Profiles  []ProfileFigure
}

// ModelFit pairs a fitted model with its display name and, for
// negative binomial fits, the profiled dispersion interval.
type ModelFit struct {
	Name    string
	Results *glm.Results

	AlphaMLE   float64
	AlphaLower float64
	AlphaUpper float64
}

// Input carries everything the report shows.
type Input struct {
	Dataset     *simulate.Dataset
	Fits        []ModelFit
	Gof         []gof.Result
	Figures     Figures
	CILevel     float64
	Fingerprint string
}

// Model is the data handed to the HTML template.
type Model struct {
	Title       string
	GeneratedAt string
	Seed        int64
	N           int
	Intercept   float64
	Slope       float64
	Fingerprint string
	CILevelPct  string

	Sections []Section

	Intro      template.HTML
	DataProse  template.HTML
	ModelProse template.HTML
	GofProse   template.HTML
	Conclusion template.HTML

	DataTable []ProcessSummary
	Histogram string
	CoefPlot  string
	Fits      []FitSummary
	GofTable  []GofEntry
	Profiles  []ProfileFigure
}

// Build assembles the template model from the pipeline outputs.
func Build(in Input) (*Model, error) {
	if in.Dataset == nil {
		return nil, fmt.Errorf("report: no dataset")
	}
	if len(in.Fits) == 0 {
		return nil, fmt.Errorf("report: no fitted models")
	}
	if in.CILevel <= 0 || in.CILevel >= 1 {
		return nil, fmt.Errorf("report: confidence level %v outside (0, 1)", in.CILevel)
	}

	cfg := in.Dataset.Config

	m := &Model{
		Title:       "Overdispersed counts and the cost of extra noise",
		GeneratedAt: time.Now().UTC().Format("2006-01-02 15:04 UTC"),
		Seed:        cfg.Seed,
		N:           cfg.N,
		Intercept:   cfg.Intercept,
		Slope:       cfg.Slope,
		Fingerprint: in.Fingerprint,
		CILevelPct:  fmt.Sprintf("%g%%", in.CILevel*100),
		Histogram:   in.Figures.Histogram,
		CoefPlot:    in.Figures.CoefPlot,
		Profiles:    in.Figures.Profiles,
	}

	for _, proc := range in.Dataset.Processes() {
		row, err := summarize(proc)
		if err != nil {
			return nil, fmt.Errorf("report: summarizing %s: %w", proc.Name, err)
		}
		m.DataTable = append(m.DataTable, row)
	}

	for _, fit := range in.Fits {
		fs, err := summarizeFit(fit, in.CILevel)
		if err != nil {
			return nil, err
		}
		m.Fits = append(m.Fits, fs)
	}

	for _, g := range in.Gof {
		m.GofTable = append(m.GofTable, GofEntry{
			Model:       g.Model,
			McFadden:    g.McFadden,
			CoxSnell:    g.CoxSnell,
			Nagelkerke:  g.Nagelkerke,
			GSquared:    g.GSquared,
			LogLike:     g.LogLike,
			NullLogLike: g.NullLogLike,
		})
	}

	m.Sections = []Section{
		{ID: "overview", Title: "Overview"},
		{ID: "data", Title: "Simulated data"},
		{ID: "models", Title: "Model estimates"},
		{ID: "gof", Title: "Explanatory power"},
	}
	if len(m.Profiles) > 0 {
		m.Sections = append(m.Sections, Section{ID: "dispersion", Title: "Dispersion profiles"})
	}
	m.Sections = append(m.Sections, Section{ID: "repro", Title: "Reproducibility"})

	m.Intro = introProse(cfg)
	m.DataProse = dataProse(m.DataTable)
	m.ModelProse = modelProse(cfg, m.CILevelPct)
	m.GofProse = gofProse()
	m.Conclusion = conclusionProse(in.Gof)

	return m, nil
}

// summarize computes the descriptive row for one response column.
func summarize(proc simulate.Process) (ProcessSummary, error) {
	row := ProcessSummary{Name: proc.Name, Label: proc.Label}

	mean, err := stats.Mean(proc.Y)
	if err != nil {
		return row, err
	}
	variance, err := stats.SampleVariance(proc.Y)
	if err != nil {
		return row, err
	}
	median, err := stats.Median(proc.Y)
	if err != nil {
		return row, err
	}
	max, err := stats.Max(proc.Y)
	if err != nil {
		return row, err
	}

	zeros := 0
	for _, v := range proc.Y {
		if v == 0 {
			zeros++
		}
	}

	row.Mean = mean
	row.Variance = variance
	row.Median = median
	row.Max = max
	row.ZeroShare = float64(zeros) / float64(len(proc.Y))
	if mean > 0 {
		row.VarMeanRatio = variance / mean
	}

	return row, nil
}

func summarizeFit(fit ModelFit, level float64) (FitSummary, error) {
	if fit.Results == nil {
		return FitSummary{}, fmt.Errorf("report: fit %s has no results", fit.Name)
	}

	rslt := fit.Results
	fs := FitSummary{
		Name:       fit.Name,
		Family:     rslt.Family().Name,
		LogLike:    rslt.LogLike(),
		Deviance:   rslt.Deviance(),
		Iterations: rslt.NumIter(),
		Alpha:      fit.AlphaMLE,
		AlphaLower: fit.AlphaLower,
		AlphaUpper: fit.AlphaUpper,
	}
	if fit.AlphaMLE > 0 {
		fs.Size = 1 / fit.AlphaMLE
	}

	params := rslt.Params()
	se := rslt.StdErr()
	z := rslt.ZScores()
	pv := rslt.PValues()
	lo, hi := rslt.ConfInt(level)

	for i, name := range rslt.Names() {
		fs.Coefs = append(fs.Coefs, CoefRow{
			Name:     name,
			Estimate: params[i],
			StdErr:   se[i],
			Z:        z[i],
			P:        pv[i],
			Lower:    lo[i],
			Upper:    hi[i],
		})
	}

	return fs, nil
}
