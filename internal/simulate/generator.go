package simulate

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"
)

// Dataset is the canonical in-memory representation of one simulated
// draw. Every row shares a single covariate x; the three count
// columns are alternative responses generated from the same linear
// predictor under increasing overdispersion.
//
// Columns:
// - x
// - poisson
// - nb_moderate
// - nb_strong
type Dataset struct {
	Config  Config
	Headers []string
	Rows    [][]string // already formatted/rounded strings

	// Numeric series for fitting and tests
	X          []float64
	LinPred    []float64
	Poisson    []float64
	NBModerate []float64
	NBStrong   []float64
}

// Process names one simulated response column together with the
// parameters that produced it. Size is the negative binomial size
// parameter; zero marks the Poisson column.
type Process struct {
	Name  string
	Label string
	Size  float64
	Y     []float64
}

// Processes lists the three response columns in generation order.
func (ds *Dataset) Processes() []Process {
	return []Process{
		{Name: "poisson", Label: "Poisson", Size: 0, Y: ds.Poisson},
		{Name: "nb_moderate", Label: fmt.Sprintf("NB size=%v", ds.Config.SizeModerate), Size: ds.Config.SizeModerate, Y: ds.NBModerate},
		{Name: "nb_strong", Label: fmt.Sprintf("NB size=%v", ds.Config.SizeStrong), Size: ds.Config.SizeStrong, Y: ds.NBStrong},
	}
}

type Config struct {
	Seed int64 `yaml:"seed" json:"seed"`
	N    int   `yaml:"n" json:"n"`

	// Linear predictor on the log scale
	Intercept float64 `yaml:"intercept" json:"intercept"`
	Slope     float64 `yaml:"slope" json:"slope"`

	// Negative binomial size parameters (dispersion alpha = 1/size)
	SizeModerate float64 `yaml:"size_moderate" json:"size_moderate"`
	SizeStrong   float64 `yaml:"size_strong" json:"size_strong"`
}

func DefaultConfig() Config {
	return Config{
		Seed:         123456,
		N:            1000,
		Intercept:    0.5,
		Slope:        -1,
		SizeModerate: 0.5,
		SizeStrong:   0.05,
	}
}

func (cfg Config) Validate() error {
	if cfg.N <= 0 {
		return fmt.Errorf("n must be > 0")
	}
	if cfg.SizeModerate <= 0 {
		return fmt.Errorf("size_moderate must be > 0")
	}
	if cfg.SizeStrong <= 0 {
		return fmt.Errorf("size_strong must be > 0")
	}
	return nil
}

// LoadConfig reads generator settings from a YAML file. Fields left
// out of the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Generate simulates the dataset for one seed. The draw order is
// fixed (x first, then each response column in full) so a seed pins
// down every value bit for bit.
func Generate(cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src := rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed))

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	x := make([]float64, cfg.N)
	for i := range x {
		x[i] = normal.Rand()
	}

	lp := make([]float64, cfg.N)
	mu := make([]float64, cfg.N)
	for i := range lp {
		lp[i] = cfg.Intercept + cfg.Slope*x[i]
		mu[i] = math.Exp(lp[i])
	}

	pois := make([]float64, cfg.N)
	for i := range pois {
		pois[i] = distuv.Poisson{Lambda: mu[i], Src: src}.Rand()
	}

	nbMod := make([]float64, cfg.N)
	for i := range nbMod {
		nbMod[i] = sampleNegBinom(src, mu[i], cfg.SizeModerate)
	}

	nbStr := make([]float64, cfg.N)
	for i := range nbStr {
		nbStr[i] = sampleNegBinom(src, mu[i], cfg.SizeStrong)
	}

	headers := []string{"x", "poisson", "nb_moderate", "nb_strong"}

	rows := make([][]string, cfg.N)
	for i := 0; i < cfg.N; i++ {
		rows[i] = []string{
			fToStr(x[i], 6),
			fToStr(pois[i], 0),
			fToStr(nbMod[i], 0),
			fToStr(nbStr[i], 0),
		}
	}

	return &Dataset{
		Config:     cfg,
		Headers:    headers,
		Rows:       rows,
		X:          x,
		LinPred:    lp,
		Poisson:    pois,
		NBModerate: nbMod,
		NBStrong:   nbStr,
	}, nil
}

// sampleNegBinom draws a count with the given mean and size via the
// gamma-Poisson mixture, matching R's rnbinom(mu=, size=).
func sampleNegBinom(src rand.Source, mu, size float64) float64 {
	lam := distuv.Gamma{Alpha: size, Beta: size / mu, Src: src}.Rand()
	return distuv.Poisson{Lambda: lam, Src: src}.Rand()
}

// CSVBytes renders the dataset in the layout WriteCSV writes. The
// bytes are what gets fingerprinted, so the format must stay stable.
func CSVBytes(ds *Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(ds.Headers); err != nil {
		return nil, err
	}
	for _, row := range ds.Rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteCSV(path string, ds *Dataset) error {
	data, err := CSVBytes(ds)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadCSV loads a dataset previously written by WriteCSV. The column
// layout must match; generator settings other than n are not stored
// in the file, so the returned Config carries the defaults.
func ReadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("simulate: %s has no data rows", path)
	}

	want := []string{"x", "poisson", "nb_moderate", "nb_strong"}
	header := records[0]
	if len(header) != len(want) {
		return nil, fmt.Errorf("simulate: expected %d columns, found %d", len(want), len(header))
	}
	for i, name := range want {
		if header[i] != name {
			return nil, fmt.Errorf("simulate: expected column %q at position %d, found %q", name, i, header[i])
		}
	}

	rows := records[1:]
	cfg := DefaultConfig()
	cfg.N = len(rows)

	ds := &Dataset{
		Config:     cfg,
		Headers:    header,
		Rows:       rows,
		X:          make([]float64, len(rows)),
		Poisson:    make([]float64, len(rows)),
		NBModerate: make([]float64, len(rows)),
		NBStrong:   make([]float64, len(rows)),
	}

	cols := []*[]float64{&ds.X, &ds.Poisson, &ds.NBModerate, &ds.NBStrong}
	for i, row := range rows {
		if len(row) != len(want) {
			return nil, fmt.Errorf("simulate: row %d has %d fields", i+1, len(row))
		}
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("simulate: row %d column %s: %w", i+1, header[j], err)
			}
			(*cols[j])[i] = v
		}
	}

	return ds, nil
}

func WriteXLSX(path string, ds *Dataset) error {
	f := excelize.NewFile()

	// Ensure Sheet1 exists and is active.
	sheet := "Sheet1"
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	// Header row
	for i, h := range ds.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	// Data rows
	for r := 0; r < len(ds.Rows); r++ {
		rowIdx := r + 2
		for c, v := range ds.Rows[r] {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowIdx)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return err
	}
	return nil
}

func fToStr(x float64, decimals int) string {
	p := math.Pow10(decimals)
	x = math.Round(x*p) / p
	return strconv.FormatFloat(x, 'f', decimals, 64)
}
