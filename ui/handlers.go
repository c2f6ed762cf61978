package ui

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"overcount/internal/archive"
	"overcount/internal/simulate"
)

// handleIndex renders the landing page with the most recent runs.
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := a.store.ListRuns(r.Context())
	if err != nil {
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}

	recent := runs
	if len(recent) > 5 {
		recent = recent[:5]
	}

	data := map[string]interface{}{
		"Runs":      recent,
		"RunCount":  len(runs),
		"HasReport": a.reportOnDisk(),
	}
	a.renderTemplate(w, "index.html", data)
}

// handleLatestReport serves the report most recently written to disk.
func (a *App) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(a.outDir, a.reportFile)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "No report generated yet. Run `overcount run` first.", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// handleRuns renders the full archive listing.
func (a *App) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.store.ListRuns(r.Context())
	if err != nil {
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Runs": runs,
	}
	a.renderTemplate(w, "runs.html", data)
}

// handleRunReport serves the archived report page for one run.
func (a *App) handleRunReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadRun(w, r)
	if !ok {
		return
	}
	if len(rec.ReportHTML) == 0 {
		http.Error(w, "Run has no archived report", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(rec.ReportHTML)
}

// handleRunDataset downloads the archived dataset as CSV.
func (a *App) handleRunDataset(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="counts_%s.csv"`, shortID(rec.ID)))
	w.Write(rec.DatasetCSV)
}

// handleListRuns returns run summaries as JSON.
func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.store.ListRuns(r.Context())
	if err != nil {
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []archive.RunSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// runDetail is the JSON view of a run, without the stored blobs.
type runDetail struct {
	ID          string           `json:"id"`
	CreatedAt   string           `json:"created_at"`
	Fingerprint string           `json:"fingerprint"`
	Config      simulate.Config  `json:"config"`
	Fits        []archive.FitRow `json:"fits"`
	Gof         []archive.GofRow `json:"gof"`
}

// handleGetRun returns one run's metadata, fits, and gof rows as JSON.
func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadRun(w, r)
	if !ok {
		return
	}

	detail := runDetail{
		ID:          rec.ID,
		CreatedAt:   rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Fingerprint: rec.Fingerprint,
		Config:      rec.Config,
		Fits:        rec.Fits,
		Gof:         rec.Gof,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// loadRun fetches the run named in the URL, writing the error response
// itself when the lookup fails.
func (a *App) loadRun(w http.ResponseWriter, r *http.Request) (*archive.RunRecord, bool) {
	id := chi.URLParam(r, "id")
	rec, err := a.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Run not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to load run", http.StatusInternalServerError)
		}
		return nil, false
	}
	return rec, true
}

func (a *App) reportOnDisk() bool {
	_, err := os.Stat(filepath.Join(a.outDir, a.reportFile))
	return err == nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
