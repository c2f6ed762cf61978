package app

import (
	"context"
	"testing"

	"overcount/internal/simulate"
)

func TestCoverageService_SmallSweep(t *testing.T) {
	sim := simulate.DefaultConfig()
	sim.N = 250

	svc := NewCoverageService(nil)
	result, err := svc.Run(context.Background(), CoverageRequest{
		Sim:          sim,
		Replications: 6,
		Level:        0.95,
		Workers:      3,
	})
	if err != nil {
		t.Fatalf("Failed to run sweep: %v", err)
	}

	if result.Replications != 6 {
		t.Errorf("Expected 6 replications, got %d", result.Replications)
	}
	if got := result.OrderingHeld + result.OrderingViolated; got != 6 {
		t.Errorf("Ordering tallies should sum to 6, got %d", got)
	}

	if len(result.Coverage) != 6 {
		t.Fatalf("Expected 6 coverage rows (3 models x 2 params), got %d", len(result.Coverage))
	}
	for _, row := range result.Coverage {
		if row.Total != 6 {
			t.Errorf("Row %s/%s: expected 6 totals, got %d", row.Model, row.Param, row.Total)
		}
		if row.Rate < 0 || row.Rate > 1 {
			t.Errorf("Row %s/%s: rate %v outside [0, 1]", row.Model, row.Param, row.Rate)
		}
		// Nominal coverage is 95%; even allowing for small-sample
		// optimism, most intervals must cover the truth.
		if row.Rate < 0.5 {
			t.Errorf("Row %s/%s: coverage %v is implausibly low", row.Model, row.Param, row.Rate)
		}
	}

	if len(result.Power) != 3 {
		t.Fatalf("Expected 3 power rows, got %d", len(result.Power))
	}
	if !(result.Power[0].MeanMcFadden > result.Power[2].MeanMcFadden) {
		t.Errorf("Expected Poisson mean McFadden %v above the strongly overdispersed %v",
			result.Power[0].MeanMcFadden, result.Power[2].MeanMcFadden)
	}
}

func TestCoverageService_Validation(t *testing.T) {
	svc := NewCoverageService(nil)
	sim := simulate.DefaultConfig()
	sim.N = 100

	if _, err := svc.Run(context.Background(), CoverageRequest{Sim: sim, Replications: 0}); err == nil {
		t.Error("Expected an error for zero replications")
	}
	if _, err := svc.Run(context.Background(), CoverageRequest{Sim: sim, Replications: 2, Level: 1.5}); err == nil {
		t.Error("Expected an error for a level outside (0, 1)")
	}
}
