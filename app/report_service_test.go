package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"overcount/internal/archive"
	"overcount/internal/config"
	"overcount/internal/simulate"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Output: config.OutputConfig{
			Dir:        dir,
			ReportFile: "report.html",
			WriteCSV:   true,
			CILevel:    0.95,
		},
	}
}

func TestReportService_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	store, err := archive.NewStore(filepath.Join(dir, "archive.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	svc := NewReportService(testConfig(dir), store, nil)
	result, err := svc.Run(context.Background(), ReportRequest{Sim: simulate.DefaultConfig()})
	if err != nil {
		t.Fatalf("Failed to run pipeline: %v", err)
	}

	// Report and dataset land on disk
	page, err := os.ReadFile(result.ReportPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !strings.Contains(string(page), "<html") {
		t.Error("Report is not an HTML page")
	}
	if !strings.Contains(string(page), result.Fingerprint) {
		t.Error("Report does not show the dataset fingerprint")
	}
	if _, err := os.Stat(filepath.Join(dir, "counts.csv")); err != nil {
		t.Errorf("Dataset CSV missing: %v", err)
	}

	for _, figure := range []string{
		"histograms.png",
		"coefficients.png",
		"profile_nb_moderate.png",
		"profile_nb_strong.png",
	} {
		if _, err := os.Stat(filepath.Join(dir, "figures", figure)); err != nil {
			t.Errorf("Figure %s missing: %v", figure, err)
		}
	}

	// Explanatory power falls as overdispersion grows
	if len(result.Gof) != 3 {
		t.Fatalf("Expected 3 gof results, got %d", len(result.Gof))
	}
	if result.Gof[0].Model != "Poisson" {
		t.Errorf("Expected first model to be Poisson, got %s", result.Gof[0].Model)
	}
	if !(result.Gof[0].McFadden > result.Gof[1].McFadden) {
		t.Errorf("Expected Poisson McFadden %v > moderate %v",
			result.Gof[0].McFadden, result.Gof[1].McFadden)
	}
	if !(result.Gof[1].McFadden > result.Gof[2].McFadden) {
		t.Errorf("Expected moderate McFadden %v > strong %v",
			result.Gof[1].McFadden, result.Gof[2].McFadden)
	}

	// Run is archived with the stored report and dataset
	if result.RunID == "" {
		t.Fatal("Expected an archived run ID")
	}
	runs, err := store.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != result.RunID {
		t.Fatalf("Expected one archived run %s, got %+v", result.RunID, runs)
	}
	if runs[0].Fingerprint != result.Fingerprint {
		t.Errorf("Archive fingerprint %s does not match result %s",
			runs[0].Fingerprint, result.Fingerprint)
	}

	rec, err := store.GetRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("Failed to load archived run: %v", err)
	}
	if string(rec.ReportHTML) != string(page) {
		t.Error("Archived report differs from the file on disk")
	}
	csvBytes, err := os.ReadFile(filepath.Join(dir, "counts.csv"))
	if err != nil {
		t.Fatalf("Failed to read dataset CSV: %v", err)
	}
	if string(rec.DatasetCSV) != string(csvBytes) {
		t.Error("Archived dataset differs from the file on disk")
	}
	if len(rec.Fits) != 6 {
		t.Errorf("Expected 6 archived coefficient rows, got %d", len(rec.Fits))
	}
	if len(rec.Gof) != 3 {
		t.Errorf("Expected 3 archived gof rows, got %d", len(rec.Gof))
	}
}

func TestReportService_Deterministic(t *testing.T) {
	sim := simulate.DefaultConfig()
	sim.N = 400

	first := NewReportService(testConfig(t.TempDir()), nil, nil)
	second := NewReportService(testConfig(t.TempDir()), nil, nil)

	r1, err := first.Run(context.Background(), ReportRequest{Sim: sim})
	if err != nil {
		t.Fatalf("Failed first run: %v", err)
	}
	r2, err := second.Run(context.Background(), ReportRequest{Sim: sim})
	if err != nil {
		t.Fatalf("Failed second run: %v", err)
	}

	if r1.Fingerprint != r2.Fingerprint {
		t.Errorf("Same seed produced different fingerprints: %s vs %s",
			r1.Fingerprint, r2.Fingerprint)
	}
	if r1.RunID != "" {
		t.Error("Expected no run ID without an archive store")
	}
}

func TestReportService_InvalidSimConfig(t *testing.T) {
	svc := NewReportService(testConfig(t.TempDir()), nil, nil)

	sim := simulate.DefaultConfig()
	sim.N = 0
	if _, err := svc.Run(context.Background(), ReportRequest{Sim: sim}); err == nil {
		t.Error("Expected an error for n=0")
	}
}
