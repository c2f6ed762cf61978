package archive

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"overcount/internal/simulate"
)

func testRecord() *RunRecord {
	return &RunRecord{
		Config:     simulate.DefaultConfig(),
		DatasetCSV: []byte("x,poisson,nb_moderate,nb_strong\n0.1,2,1,0\n-0.4,3,5,12\n"),
		ReportHTML: []byte("<html><body>report</body></html>"),
		Fits: []FitRow{
			{Model: "poisson", Param: "icept", Estimate: 0.51, StdErr: 0.02, Lower: 0.47, Upper: 0.55},
			{Model: "poisson", Param: "x", Estimate: -0.99, StdErr: 0.02, Lower: -1.03, Upper: -0.95},
		},
		Gof: []GofRow{
			{Model: "poisson", McFadden: 0.42, CoxSnell: 0.55, Nagelkerke: 0.58, GSquared: 900, LogLike: -1400, NullLogLike: -1850},
		},
	}
}

func TestStore_SaveAndGetRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	rec := testRecord()

	if err := store.SaveRun(ctx, rec); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if rec.ID == "" || rec.Fingerprint == "" {
		t.Fatalf("SaveRun did not fill identity fields: %+v", rec)
	}

	got, err := store.GetRun(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Failed to load run: %v", err)
	}

	if !bytes.Equal(got.DatasetCSV, rec.DatasetCSV) {
		t.Error("Dataset bytes did not round trip")
	}
	if !bytes.Equal(got.ReportHTML, rec.ReportHTML) {
		t.Error("Report bytes did not round trip")
	}
	if got.Config != rec.Config {
		t.Errorf("Config mismatch: %+v vs %+v", got.Config, rec.Config)
	}
	if got.Fingerprint != Fingerprint(rec.DatasetCSV) {
		t.Errorf("Fingerprint mismatch: %s", got.Fingerprint)
	}
	if len(got.Fits) != 2 {
		t.Fatalf("Expected 2 fit rows, got %d", len(got.Fits))
	}
	if got.Fits[0].Param != "icept" || got.Fits[1].Param != "x" {
		t.Errorf("Fit rows out of order: %+v", got.Fits)
	}
	if len(got.Gof) != 1 || got.Gof[0].McFadden != 0.42 {
		t.Errorf("Gof rows did not round trip: %+v", got.Gof)
	}
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	older := testRecord()
	older.CreatedAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SaveRun(ctx, older); err != nil {
		t.Fatalf("Failed to save first run: %v", err)
	}

	newer := testRecord()
	newer.CreatedAt = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SaveRun(ctx, newer); err != nil {
		t.Fatalf("Failed to save second run: %v", err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer.ID {
		t.Errorf("Expected newest run first, got %s", runs[0].ID)
	}
	if runs[0].Seed != 123456 || runs[0].N != 1000 {
		t.Errorf("Summary fields wrong: %+v", runs[0])
	}
}

func TestStore_GetRunMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if _, err := store.GetRun(context.Background(), "no-such-run"); err == nil {
		t.Error("Expected an error for a missing run, got nil")
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	rec := testRecord()
	if err := store.SaveRun(context.Background(), rec); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// Second open goes through the existing-schema path.
	store2, err := NewStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store2.Close()

	runs, err := store2.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("Failed to list runs after reopen: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != rec.ID {
		t.Errorf("Archived run missing after reopen: %+v", runs)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("abc"))
	b := Fingerprint([]byte("abc"))
	c := Fingerprint([]byte("abd"))

	if a != b {
		t.Errorf("Fingerprint not stable: %s vs %s", a, b)
	}
	if a == c {
		t.Error("Different payloads share a fingerprint")
	}
	if len(a) != 16 {
		t.Errorf("Fingerprint length = %d, want 16", len(a))
	}
}
