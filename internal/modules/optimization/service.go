// Package optimization computes portfolio weights under four mean-variance
// risk models, isolating per-model failures and auto-adjusting infeasible
// target constraints.
package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfold/allocator-bot/internal/modules/prices"
)

// The four named risk models. All four are always attempted per request.
const (
	ModelMaxSharpe       = "max_sharpe"
	ModelMinVolatility   = "min_volatility"
	ModelEfficientRisk   = "efficient_risk"
	ModelEfficientReturn = "efficient_return"
)

// ModelNames lists the risk models in their canonical order.
var ModelNames = []string{
	ModelMaxSharpe,
	ModelMinVolatility,
	ModelEfficientRisk,
	ModelEfficientReturn,
}

// Status tags a ModelResult.
type Status string

const (
	// StatusSuccess means the model converged at the requested constraints.
	StatusSuccess Status = "success"
	// StatusAdjusted means the model converged only after its infeasible
	// target was auto-adjusted; Message explains the adjustment.
	StatusAdjusted Status = "adjusted"
	// StatusFailed means the model produced no weights; Message explains why.
	StatusFailed Status = "failed"
)

// ModelResult is the outcome of a single risk-model solve. Exactly one of
// Weights (success/adjusted) or a bare Message (failed) carries meaning;
// adjusted results carry both.
type ModelResult struct {
	Status  Status
	Weights map[string]float64
	Message string
}

// Constraints are the scalar optimization inputs, all decimal fractions
// (0.05 = 5%). No bounds are enforced on input; infeasibility is resolved
// per model.
type Constraints struct {
	RiskFreeRate     float64
	TargetReturn     float64
	TargetVolatility float64
}

// Service orchestrates the four risk-model solves for one request.
type Service struct {
	solver *Solver
	log    zerolog.Logger

	// AdjustBuffer is the relative margin applied when an infeasible target
	// is auto-adjusted: volatility targets are raised to minVol*(1+buffer),
	// return targets lowered to maxReturn*(1-buffer).
	AdjustBuffer float64
}

// NewService creates a new optimizer service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		solver:       NewSolver(),
		log:          log.With().Str("component", "optimization").Logger(),
		AdjustBuffer: 0.01,
	}
}

// Run computes all four risk models from a price matrix. Every model gets a
// result entry; a failure in one model never aborts its siblings. The
// returned notes map carries the diagnostic message for every model that was
// adjusted or failed.
func (s *Service) Run(matrix *prices.Matrix, constraints Constraints) (map[string]ModelResult, map[string]string) {
	results := make(map[string]ModelResult, len(ModelNames))
	notes := make(map[string]string)

	stats, err := ComputeStatistics(matrix)
	if err != nil {
		// Without mu and S nothing can be solved; every model fails with
		// the same diagnostic.
		msg := fmt.Sprintf("failed to derive return statistics: %v", err)
		s.log.Warn().Err(err).Msg("Statistics computation failed")
		for _, model := range ModelNames {
			results[model] = ModelResult{Status: StatusFailed, Message: msg}
			notes[model] = msg
		}
		return results, notes
	}

	// The two unconstrained models are attempted independently; a failure
	// in one does not block the other.
	results[ModelMaxSharpe] = s.attempt(ModelMaxSharpe, func() (*Solution, error) {
		return s.solver.MaxSharpe(stats, constraints.RiskFreeRate)
	})

	minVolSolution, minVolResult := s.attemptSolution(ModelMinVolatility, func() (*Solution, error) {
		return s.solver.MinVolatility(stats)
	})
	results[ModelMinVolatility] = minVolResult

	// The achieved minimum volatility bounds the feasible region for the
	// efficient_risk model.
	minVolAchievable := math.NaN()
	if minVolSolution != nil {
		minVolAchievable = minVolSolution.Volatility
	}

	results[ModelEfficientRisk] = s.runEfficientRisk(stats, constraints.TargetVolatility, minVolAchievable)
	results[ModelEfficientReturn] = s.runEfficientReturn(stats, constraints.TargetReturn)

	for _, model := range ModelNames {
		if result := results[model]; result.Status != StatusSuccess {
			notes[model] = result.Message
		}
	}

	return results, notes
}

// runEfficientRisk solves the target-volatility model, raising the target
// above the achievable minimum when the request is infeasible.
func (s *Service) runEfficientRisk(stats *Statistics, targetVolatility, minVolAchievable float64) ModelResult {
	if math.IsNaN(minVolAchievable) {
		return ModelResult{
			Status: StatusFailed,
			Message: fmt.Sprintf(
				"efficient_risk not attempted: minimum achievable volatility is unknown, so the feasibility of target volatility %.4f could not be validated",
				targetVolatility,
			),
		}
	}

	if targetVolatility <= minVolAchievable {
		adjusted := minVolAchievable * (1 + s.AdjustBuffer)
		result := s.attempt(ModelEfficientRisk, func() (*Solution, error) {
			return s.solver.EfficientRisk(stats, adjusted)
		})
		if result.Status == StatusFailed {
			return result
		}
		result.Status = StatusAdjusted
		result.Message = fmt.Sprintf(
			"target volatility %.4f is at or below the minimum achievable volatility %.4f; adjusted to %.4f",
			targetVolatility, minVolAchievable, adjusted,
		)
		s.log.Info().
			Float64("requested", targetVolatility).
			Float64("min_achievable", minVolAchievable).
			Float64("adjusted", adjusted).
			Msg("Adjusted infeasible target volatility")
		return result
	}

	return s.attempt(ModelEfficientRisk, func() (*Solution, error) {
		return s.solver.EfficientRisk(stats, targetVolatility)
	})
}

// runEfficientReturn solves the target-return model, lowering the target
// below the best single-asset return when the request is infeasible.
func (s *Service) runEfficientReturn(stats *Statistics, targetReturn float64) ModelResult {
	maxReturn := stats.MaxExpectedReturn()

	if targetReturn >= maxReturn {
		// Subtract the buffer relative to the ceiling's magnitude so the
		// adjusted target lands below it for negative ceilings too.
		adjusted := maxReturn - s.AdjustBuffer*math.Abs(maxReturn)
		if adjusted >= maxReturn {
			return ModelResult{
				Status: StatusFailed,
				Message: fmt.Sprintf(
					"efficient_return not attempted: target return %.4f cannot be lowered below the maximum single-asset expected return %.4f",
					targetReturn, maxReturn,
				),
			}
		}
		result := s.attempt(ModelEfficientReturn, func() (*Solution, error) {
			return s.solver.EfficientReturn(stats, adjusted)
		})
		if result.Status == StatusFailed {
			return result
		}
		result.Status = StatusAdjusted
		result.Message = fmt.Sprintf(
			"target return %.4f is at or above the maximum single-asset expected return %.4f; adjusted to %.4f",
			targetReturn, maxReturn, adjusted,
		)
		s.log.Info().
			Float64("requested", targetReturn).
			Float64("max_individual", maxReturn).
			Float64("adjusted", adjusted).
			Msg("Adjusted infeasible target return")
		return result
	}

	return s.attempt(ModelEfficientReturn, func() (*Solution, error) {
		return s.solver.EfficientReturn(stats, targetReturn)
	})
}

// attempt isolates a single model solve: errors and panics become a failed
// result for that model only, never aborting the batch.
func (s *Service) attempt(model string, solve func() (*Solution, error)) ModelResult {
	_, result := s.attemptSolution(model, solve)
	return result
}

// attemptSolution is attempt plus the raw solution, for callers that need
// the achieved portfolio statistics.
func (s *Service) attemptSolution(model string, solve func() (*Solution, error)) (sol *Solution, result ModelResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("model", model).Interface("panic", r).Msg("Model solve panicked")
			sol = nil
			result = ModelResult{
				Status:  StatusFailed,
				Message: fmt.Sprintf("%s failed: %v", model, r),
			}
		}
	}()

	sol, err := solve()
	if err != nil {
		s.log.Warn().Str("model", model).Err(err).Msg("Model solve failed")
		return nil, ModelResult{
			Status:  StatusFailed,
			Message: fmt.Sprintf("%s failed: %v", model, err),
		}
	}

	return sol, ModelResult{Status: StatusSuccess, Weights: sol.Weights}
}
