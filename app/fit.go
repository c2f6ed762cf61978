package app

import (
	apperrors "overcount/internal/errors"
	"overcount/internal/glm"
	"overcount/internal/plots"
	"overcount/internal/simulate"
)

// fittedModel pairs one response process with its fitted regression.
type fittedModel struct {
	// Key is the process name, used for file names.
	Key string
	// Name is the display label shown in tables and figures.
	Name     string
	Results  *glm.Results
	Profiler *glm.NegBinomProfiler
}

// fitModels fits the matching regression family to every response
// column: Poisson for the Poisson process, negative binomial with
// profiled dispersion for the rest.
func fitModels(ds *simulate.Dataset) ([]fittedModel, error) {
	n := len(ds.X)
	icept := make([]float64, n)
	for i := range icept {
		icept[i] = 1
	}

	predictors := []string{"icept", "x"}

	var out []fittedModel
	for _, proc := range ds.Processes() {
		data := [][]float64{proc.Y, icept, ds.X}
		names := []string{proc.Name, "icept", "x"}

		if proc.Size == 0 {
			cfg := glm.DefaultConfig()
			cfg.Family = glm.NewPoissonFamily()
			model, err := glm.New(data, names, proc.Name, predictors, cfg)
			if err != nil {
				return nil, apperrors.FitError(proc.Label, err)
			}
			rslt, err := model.Fit()
			if err != nil {
				return nil, apperrors.FitError(proc.Label, err)
			}
			out = append(out, fittedModel{Key: proc.Name, Name: proc.Label, Results: rslt})
			continue
		}

		rslt, prof, err := glm.FitNegBinom(data, names, proc.Name, predictors)
		if err != nil {
			return nil, apperrors.FitError(proc.Label, err)
		}
		out = append(out, fittedModel{Key: proc.Name, Name: proc.Label, Results: rslt, Profiler: prof})
	}

	return out, nil
}

// coefPanels assembles one figure panel per regression parameter with
// the per-model estimates and the value used to generate the data.
func coefPanels(fits []fittedModel, cfg simulate.Config, level float64) []plots.CoefPanel {
	truth := map[string]float64{"icept": cfg.Intercept, "x": cfg.Slope}

	panels := make([]plots.CoefPanel, 0, 2)
	for _, param := range []string{"icept", "x"} {
		panel := plots.CoefPanel{Param: param, TrueValue: truth[param]}
		for _, fit := range fits {
			lo, hi := fit.Results.ConfInt(level)
			params := fit.Results.Params()
			for i, name := range fit.Results.Names() {
				if name != param {
					continue
				}
				panel.Estimates = append(panel.Estimates, plots.CoefEstimate{
					Model:    fit.Name,
					Estimate: params[i],
					Lower:    lo[i],
					Upper:    hi[i],
				})
			}
		}
		panels = append(panels, panel)
	}

	return panels
}
