// Package plots renders the report figures as PNG files using
// gonum/plot. Faceting is done by tiling one sub-plot per process or
// parameter onto a shared canvas row.
package plots

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"overcount/internal/simulate"
)

const (
	histBins = 30

	panelWidth  = 4 * vg.Inch
	panelHeight = 3.2 * vg.Inch
)

// CountHistograms renders the simulated response distributions side
// by side, one panel per generating process.
func CountHistograms(procs []simulate.Process, path string) error {
	if len(procs) == 0 {
		return fmt.Errorf("plots: no processes to draw")
	}

	row := make([]*plot.Plot, len(procs))
	for i, proc := range procs {
		p := plot.New()
		p.Title.Text = proc.Label
		p.X.Label.Text = "count"
		p.Y.Label.Text = "frequency"

		h, err := plotter.NewHist(plotter.Values(proc.Y), histBins)
		if err != nil {
			return fmt.Errorf("plots: histogram for %s: %w", proc.Name, err)
		}
		h.FillColor = plotutil.Color(i)
		p.Add(h)

		row[i] = p
	}

	return writePanels([][]*plot.Plot{row}, path)
}

// CoefEstimate is one model's interval estimate of one parameter.
type CoefEstimate struct {
	Model    string
	Estimate float64
	Lower    float64
	Upper    float64
}

// CoefPanel holds everything drawn in one coefficient facet: the
// parameter name, the value used to generate the data, and the
// per-model estimates.
type CoefPanel struct {
	Param     string
	TrueValue float64
	Estimates []CoefEstimate
}

// errPoints pairs point locations with their error offsets so a
// single value feeds both the scatter and the error bars.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
}

// CoefficientPanels renders the estimates with their confidence
// intervals, one panel per parameter, and draws the generating value
// as a dashed rule across each panel.
func CoefficientPanels(panels []CoefPanel, path string) error {
	if len(panels) == 0 {
		return fmt.Errorf("plots: no panels to draw")
	}

	row := make([]*plot.Plot, len(panels))
	for i, panel := range panels {
		if len(panel.Estimates) == 0 {
			return fmt.Errorf("plots: panel %s has no estimates", panel.Param)
		}

		p := plot.New()
		p.Title.Text = panel.Param
		p.Y.Label.Text = "estimate"

		pts := errPoints{
			XYs:     make(plotter.XYs, len(panel.Estimates)),
			YErrors: make(plotter.YErrors, len(panel.Estimates)),
		}
		names := make([]string, len(panel.Estimates))
		for j, est := range panel.Estimates {
			pts.XYs[j].X = float64(j)
			pts.XYs[j].Y = est.Estimate
			pts.YErrors[j].Low = est.Estimate - est.Lower
			pts.YErrors[j].High = est.Upper - est.Estimate
			names[j] = est.Model
		}

		truth := plotter.XYs{
			{X: -0.5, Y: panel.TrueValue},
			{X: float64(len(panel.Estimates)) - 0.5, Y: panel.TrueValue},
		}
		rule, err := plotter.NewLine(truth)
		if err != nil {
			return fmt.Errorf("plots: rule for %s: %w", panel.Param, err)
		}
		rule.LineStyle.Color = plotutil.Color(3)
		rule.LineStyle.Dashes = plotutil.Dashes(2)

		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return fmt.Errorf("plots: error bars for %s: %w", panel.Param, err)
		}

		dots, err := plotter.NewScatter(pts.XYs)
		if err != nil {
			return fmt.Errorf("plots: points for %s: %w", panel.Param, err)
		}
		dots.GlyphStyle.Radius = vg.Points(3)
		dots.GlyphStyle.Shape = draw.CircleGlyph{}
		dots.GlyphStyle.Color = plotutil.Color(0)

		p.Add(rule, bars, dots)
		p.NominalX(names...)

		row[i] = p
	}

	return writePanels([][]*plot.Plot{row}, path)
}

// ProfileCurve renders a dispersion profile log-likelihood with the
// MLE marked by a vertical rule. Points where a refit failed carry a
// -Inf likelihood and are skipped.
func ProfileCurve(title string, points [][2]float64, mle float64, path string) error {

	xys := make(plotter.XYs, 0, len(points))
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, pt := range points {
		if math.IsNaN(pt[1]) || math.IsInf(pt[1], 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: pt[0], Y: pt[1]})
		ymin = math.Min(ymin, pt[1])
		ymax = math.Max(ymax, pt[1])
	}
	if len(xys) == 0 {
		return fmt.Errorf("plots: profile for %s has no finite points", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "alpha"
	p.Y.Label.Text = "profile log-likelihood"

	curve, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	curve.LineStyle.Color = plotutil.Color(0)

	rule, err := plotter.NewLine(plotter.XYs{{X: mle, Y: ymin}, {X: mle, Y: ymax}})
	if err != nil {
		return err
	}
	rule.LineStyle.Color = plotutil.Color(3)
	rule.LineStyle.Dashes = plotutil.Dashes(2)

	p.Add(plotter.NewGrid(), curve, rule)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// writePanels tiles the plots onto one PNG canvas.
func writePanels(plots [][]*plot.Plot, path string) error {

	rows := len(plots)
	cols := 0
	for _, r := range plots {
		if len(r) > cols {
			cols = len(r)
		}
	}

	img := vgimg.New(vg.Length(cols)*panelWidth, vg.Length(rows)*panelHeight)
	dc := draw.New(img)

	t := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 2,
		PadY:      vg.Millimeter * 2,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}

	canvases := plot.Align(plots, t, dc)
	for i, r := range plots {
		for j, p := range r {
			if p != nil {
				p.Draw(canvases[i][j])
			}
		}
	}

	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return err
	}
	return nil
}
