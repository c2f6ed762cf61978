// Package archive persists completed runs in a single-file SQLite
// database so any report can be listed, reproduced, or exported
// later without rerunning the pipeline.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/gzip"
	_ "modernc.org/sqlite" // SQLite driver

	"overcount/internal/simulate"
)

// Store is the run archive. All writes are serialized through one
// connection, which is how SQLite prefers it.
type Store struct {
	mu sync.Mutex
	db *sqlx.DB
}

// FitRow is one archived coefficient estimate.
type FitRow struct {
	RunID    string  `db:"run_id" json:"run_id"`
	Model    string  `db:"model" json:"model"`
	Param    string  `db:"param" json:"param"`
	Estimate float64 `db:"estimate" json:"estimate"`
	StdErr   float64 `db:"std_err" json:"std_err"`
	Lower    float64 `db:"lower" json:"lower"`
	Upper    float64 `db:"upper" json:"upper"`
}

// GofRow is one archived goodness of fit summary.
type GofRow struct {
	RunID       string  `db:"run_id" json:"run_id"`
	Model       string  `db:"model" json:"model"`
	McFadden    float64 `db:"mcfadden" json:"mcfadden"`
	CoxSnell    float64 `db:"cox_snell" json:"cox_snell"`
	Nagelkerke  float64 `db:"nagelkerke" json:"nagelkerke"`
	GSquared    float64 `db:"g_squared" json:"g_squared"`
	LogLike     float64 `db:"loglike" json:"loglike"`
	NullLogLike float64 `db:"null_loglike" json:"null_loglike"`
}

// RunRecord bundles everything stored for one run.
type RunRecord struct {
	ID          string
	CreatedAt   time.Time
	Config      simulate.Config
	Fingerprint string
	DatasetCSV  []byte
	ReportHTML  []byte
	Fits        []FitRow
	Gof         []GofRow
}

// RunSummary is the list view of an archived run.
type RunSummary struct {
	ID          string `db:"id" json:"id"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	Seed        int64  `db:"seed" json:"seed"`
	N           int    `db:"n" json:"n"`
	Fingerprint string `db:"fingerprint" json:"fingerprint"`
}

// NewStore opens (or creates) the archive at path.
func NewStore(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Fingerprint returns the xxhash of the raw dataset bytes as fixed
// width hex. Two runs with the same seed and settings share it.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// SaveRun archives one run. The ID, timestamp and fingerprint are
// filled in when left empty.
func (s *Store) SaveRun(ctx context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Fingerprint == "" {
		rec.Fingerprint = Fingerprint(rec.DatasetCSV)
	}

	dataset, err := compress(rec.DatasetCSV)
	if err != nil {
		return fmt.Errorf("failed to compress dataset: %w", err)
	}
	var report []byte
	if len(rec.ReportHTML) > 0 {
		if report, err = compress(rec.ReportHTML); err != nil {
			return fmt.Errorf("failed to compress report: %w", err)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, seed, n, intercept, slope, size_moderate, size_strong, fingerprint, dataset, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CreatedAt.Format(time.RFC3339Nano), rec.Config.Seed, rec.Config.N,
		rec.Config.Intercept, rec.Config.Slope, rec.Config.SizeModerate, rec.Config.SizeStrong,
		rec.Fingerprint, dataset, report)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, fr := range rec.Fits {
		fr.RunID = rec.ID
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO fits (run_id, model, param, estimate, std_err, lower, upper)
			VALUES (:run_id, :model, :param, :estimate, :std_err, :lower, :upper)
		`, fr); err != nil {
			return fmt.Errorf("failed to insert fit row: %w", err)
		}
	}

	for _, gr := range rec.Gof {
		gr.RunID = rec.ID
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO gof (run_id, model, mcfadden, cox_snell, nagelkerke, g_squared, loglike, null_loglike)
			VALUES (:run_id, :model, :mcfadden, :cox_snell, :nagelkerke, :g_squared, :loglike, :null_loglike)
		`, gr); err != nil {
			return fmt.Errorf("failed to insert gof row: %w", err)
		}
	}

	return tx.Commit()
}

// ListRuns returns archived runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	var out []RunSummary
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, created_at, seed, n, fingerprint
		FROM runs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}

// GetRun loads a full archived run, decompressing the dataset and
// report payloads.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var row struct {
		ID           string  `db:"id"`
		CreatedAt    string  `db:"created_at"`
		Seed         int64   `db:"seed"`
		N            int     `db:"n"`
		Intercept    float64 `db:"intercept"`
		Slope        float64 `db:"slope"`
		SizeModerate float64 `db:"size_moderate"`
		SizeStrong   float64 `db:"size_strong"`
		Fingerprint  string  `db:"fingerprint"`
		Dataset      []byte  `db:"dataset"`
		Report       []byte  `db:"report"`
	}

	err := s.db.GetContext(ctx, &row, `
		SELECT id, created_at, seed, n, intercept, slope, size_moderate, size_strong, fingerprint, dataset, report
		FROM runs
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
	}

	dataset, err := decompress(row.Dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress dataset: %w", err)
	}
	report, err := decompress(row.Report)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress report: %w", err)
	}

	rec := &RunRecord{
		ID:        row.ID,
		CreatedAt: createdAt,
		Config: simulate.Config{
			Seed:         row.Seed,
			N:            row.N,
			Intercept:    row.Intercept,
			Slope:        row.Slope,
			SizeModerate: row.SizeModerate,
			SizeStrong:   row.SizeStrong,
		},
		Fingerprint: row.Fingerprint,
		DatasetCSV:  dataset,
		ReportHTML:  report,
	}

	if err := s.db.SelectContext(ctx, &rec.Fits, `
		SELECT run_id, model, param, estimate, std_err, lower, upper
		FROM fits
		WHERE run_id = ?
		ORDER BY model, param
	`, id); err != nil {
		return nil, fmt.Errorf("failed to load fits: %w", err)
	}

	if err := s.db.SelectContext(ctx, &rec.Gof, `
		SELECT run_id, model, mcfadden, cox_snell, nagelkerke, g_squared, loglike, null_loglike
		FROM gof
		WHERE run_id = ?
		ORDER BY model
	`, id); err != nil {
		return nil, fmt.Errorf("failed to load gof rows: %w", err)
	}

	return rec, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
