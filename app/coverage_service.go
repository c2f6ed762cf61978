package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"overcount/internal"
	apperrors "overcount/internal/errors"
	"overcount/internal/gof"
	"overcount/internal/simulate"
)

// CoverageService replays the whole pipeline across consecutive seeds
// and tallies how often the Wald intervals cover the generating
// values, and how often the pseudo-R² ordering across the three
// responses holds.
type CoverageService struct {
	logger *internal.Logger
}

// NewCoverageService creates a coverage service.
func NewCoverageService(logger *internal.Logger) *CoverageService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &CoverageService{logger: logger}
}

// CoverageRequest defines a replication sweep. Seeds run from
// Sim.Seed upward, one per replication.
type CoverageRequest struct {
	Sim          simulate.Config
	Replications int
	Level        float64
	Workers      int
}

// CoverageRow is the interval coverage tally for one parameter of one
// model.
type CoverageRow struct {
	Model   string  `json:"model"`
	Param   string  `json:"param"`
	Covered int     `json:"covered"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// ModelPower is the average McFadden pseudo-R² for one model across
// the sweep.
type ModelPower struct {
	Model        string  `json:"model"`
	MeanMcFadden float64 `json:"mean_mcfadden"`
}

// CoverageResult summarizes a completed sweep.
type CoverageResult struct {
	Replications     int           `json:"replications"`
	Level            float64       `json:"level"`
	Coverage         []CoverageRow `json:"coverage"`
	Power            []ModelPower  `json:"power"`
	OrderingHeld     int           `json:"ordering_held"`
	OrderingViolated int           `json:"ordering_violated"`
	RuntimeMs        int64         `json:"runtime_ms"`
}

type coverageKey struct {
	model string
	param string
}

// Run executes the sweep with a bounded worker pool.
func (s *CoverageService) Run(ctx context.Context, req CoverageRequest) (*CoverageResult, error) {
	startTime := time.Now()

	if err := req.Sim.Validate(); err != nil {
		return nil, apperrors.ConfigInvalid(err.Error())
	}
	if req.Replications < 1 {
		return nil, apperrors.InvalidInput("at least one replication is required")
	}
	if req.Level == 0 {
		req.Level = 0.95
	}
	if req.Level <= 0 || req.Level >= 1 {
		return nil, apperrors.InvalidInput("confidence level must be in (0, 1)")
	}
	workers := req.Workers
	if workers < 1 {
		workers = 4
	}
	if workers > req.Replications {
		workers = req.Replications
	}

	truth := map[string]float64{"icept": req.Sim.Intercept, "x": req.Sim.Slope}

	var (
		mu            sync.Mutex
		modelOrder    []string
		covered       = make(map[coverageKey]int)
		total         = make(map[coverageKey]int)
		mcfaddenSum   = make(map[string]float64)
		mcfaddenCount = make(map[string]int)
		orderHeld     int
		orderBroken   int
	)

	s.logger.Info("Coverage sweep: %d replications, seeds %d..%d, %d workers",
		req.Replications, req.Sim.Seed, req.Sim.Seed+int64(req.Replications)-1, workers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for r := 0; r < req.Replications; r++ {
		seed := req.Sim.Seed + int64(r)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			cfg := req.Sim
			cfg.Seed = seed
			ds, err := simulate.Generate(cfg)
			if err != nil {
				return apperrors.SimulationError("generating replication dataset", err)
			}

			fits, err := fitModels(ds)
			if err != nil {
				return err
			}

			mcfaddens := make([]float64, len(fits))
			for i, fit := range fits {
				score, err := gof.Compute(fit.Name, fit.Results)
				if err != nil {
					return apperrors.GofError(fit.Name, err)
				}
				mcfaddens[i] = score.McFadden
			}

			mu.Lock()
			defer mu.Unlock()

			if modelOrder == nil {
				for _, fit := range fits {
					modelOrder = append(modelOrder, fit.Name)
				}
			}

			for i, fit := range fits {
				lo, hi := fit.Results.ConfInt(req.Level)
				params := fit.Results.Names()
				for j, name := range params {
					want, ok := truth[name]
					if !ok {
						continue
					}
					key := coverageKey{model: fit.Name, param: name}
					total[key]++
					if lo[j] <= want && want <= hi[j] {
						covered[key]++
					}
				}

				mcfaddenSum[fit.Name] += mcfaddens[i]
				mcfaddenCount[fit.Name]++
			}

			holds := true
			for i := 1; i < len(mcfaddens); i++ {
				if mcfaddens[i] >= mcfaddens[i-1] {
					holds = false
					break
				}
			}
			if holds {
				orderHeld++
			} else {
				orderBroken++
				s.logger.Debug("Pseudo-R² ordering violated at seed %d: %v", seed, mcfaddens)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &CoverageResult{
		Replications:     req.Replications,
		Level:            req.Level,
		OrderingHeld:     orderHeld,
		OrderingViolated: orderBroken,
		RuntimeMs:        time.Since(startTime).Milliseconds(),
	}

	for _, model := range modelOrder {
		for _, param := range []string{"icept", "x"} {
			key := coverageKey{model: model, param: param}
			n := total[key]
			if n == 0 {
				continue
			}
			result.Coverage = append(result.Coverage, CoverageRow{
				Model:   model,
				Param:   param,
				Covered: covered[key],
				Total:   n,
				Rate:    float64(covered[key]) / float64(n),
			})
		}
		result.Power = append(result.Power, ModelPower{
			Model:        model,
			MeanMcFadden: mcfaddenSum[model] / float64(mcfaddenCount[model]),
		})
	}

	return result, nil
}
