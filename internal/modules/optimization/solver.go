package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Solver performs long-only mean-variance portfolio optimization.
//
// Mathematical formulation:
//   - max_sharpe: maximize (μ'w - r_f) / sqrt(w'Σw)
//   - min_volatility: minimize w'Σw
//   - efficient_risk: maximize μ'w subject to sqrt(w'Σw) = target_volatility
//   - efficient_return: maximize μ'w - λ(w'Σw) subject to μ'w = target_return
//
// Constraints:
//   - Σw = 1 (weights sum to 1, enforced via quadratic penalty)
//   - 0 ≤ w_i ≤ 1 (no short positions, enforced via bounds projection)
type Solver struct {
	// WeightCutoff zeroes solver noise below this magnitude before the
	// final renormalization. Mirrors the weight-cleaning step of the usual
	// efficient-frontier implementations.
	WeightCutoff float64
}

// NewSolver creates a solver with the default weight-cleaning cutoff.
func NewSolver() *Solver {
	return &Solver{WeightCutoff: 1e-4}
}

// Solution is a converged portfolio: cleaned long-only weights summing to
// 1.0 plus the achieved annualized return and volatility.
type Solution struct {
	Weights    map[string]float64
	Return     float64
	Volatility float64
}

const penaltyWeight = 1000.0

// MaxSharpe maximizes the Sharpe ratio (μ'w - r_f) / sqrt(w'Σw).
func (s *Solver) MaxSharpe(stats *Statistics, riskFreeRate float64) (*Solution, error) {
	n := len(stats.Symbols)
	mu := stats.ExpectedReturns
	sigma := covToDense(stats.Covariance)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToUnitBounds(x)

			var returnVal, variance float64
			for i := 0; i < n; i++ {
				returnVal += mu[i] * xProj[i]
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * sigma.At(i, j)
				}
			}
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}

			obj := -(returnVal - riskFreeRate) / stdDev
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToUnitBounds(x)

			var returnVal, variance float64
			for i := 0; i < n; i++ {
				returnVal += mu[i] * xProj[i]
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * sigma.At(i, j)
				}
			}
			stdDev := math.Sqrt(math.Max(variance, 1e-10))
			excess := returnVal - riskFreeRate

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * xProj[j]
				}
				grad[i] = -mu[i]/stdDev + excess*dVariance/(2*stdDev*stdDev*stdDev)
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}

	return s.minimize(problem, stats, sigma)
}

// MinVolatility minimizes w'Σw.
func (s *Solver) MinVolatility(stats *Statistics) (*Solution, error) {
	n := len(stats.Symbols)
	sigma := covToDense(stats.Covariance)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToUnitBounds(x)

			var variance float64
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * sigma.At(i, j)
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}

			obj := variance
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToUnitBounds(x)

			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * xProj[j]
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}

	return s.minimize(problem, stats, sigma)
}

// EfficientRisk maximizes μ'w subject to sqrt(w'Σw) = targetVolatility.
func (s *Solver) EfficientRisk(stats *Statistics, targetVolatility float64) (*Solution, error) {
	n := len(stats.Symbols)
	mu := stats.ExpectedReturns
	sigma := covToDense(stats.Covariance)
	targetVariance := targetVolatility * targetVolatility

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToUnitBounds(x)

			var returnVal, variance float64
			for i := 0; i < n; i++ {
				returnVal += mu[i] * xProj[i]
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * sigma.At(i, j)
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}

			obj := -returnVal
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			obj += penaltyWeight * (variance - targetVariance) * (variance - targetVariance)
			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToUnitBounds(x)

			var variance float64
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * sigma.At(i, j)
				}
			}

			for i := 0; i < n; i++ {
				grad[i] = -mu[i]
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * xProj[j]
				}
				grad[i] += 2 * penaltyWeight * (variance - targetVariance) * dVariance
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}

	return s.minimize(problem, stats, sigma)
}

// EfficientReturn maximizes μ'w - λ(w'Σw) subject to μ'w = targetReturn.
func (s *Solver) EfficientReturn(stats *Statistics, targetReturn float64) (*Solution, error) {
	n := len(stats.Symbols)
	mu := stats.ExpectedReturns
	sigma := covToDense(stats.Covariance)
	lambda := 1.0 // Risk aversion parameter

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToUnitBounds(x)

			var returnVal, variance float64
			for i := 0; i < n; i++ {
				returnVal += mu[i] * xProj[i]
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * sigma.At(i, j)
				}
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}

			obj := -(returnVal - lambda*variance)
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			obj += penaltyWeight * (returnVal - targetReturn) * (returnVal - targetReturn)
			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToUnitBounds(x)

			var returnVal float64
			for i := 0; i < n; i++ {
				returnVal += mu[i] * xProj[i]
			}

			for i := 0; i < n; i++ {
				grad[i] = -mu[i]
				for j := 0; j < n; j++ {
					grad[i] += 2 * lambda * sigma.At(i, j) * xProj[j]
				}
				grad[i] += 2 * penaltyWeight * (returnVal - targetReturn) * mu[i]
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}

	return s.minimize(problem, stats, sigma)
}

// minimize runs the optimizer from an equal-weight start, retrying with a
// gradient-free method when BFGS fails to converge, then cleans and
// normalizes the final weight vector.
func (s *Solver) minimize(problem optimize.Problem, stats *Statistics, sigma *mat.Dense) (*Solution, error) {
	n := len(stats.Symbols)

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !successStatuses[result.Status] {
			return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
		}
	}

	return s.finalize(result.X, stats, sigma)
}

// finalize projects the raw solution to the long-only simplex: bounds
// projection, weight cleaning below the cutoff, and renormalization to 1.0.
func (s *Solver) finalize(x []float64, stats *Statistics, sigma *mat.Dense) (*Solution, error) {
	n := len(stats.Symbols)
	xFinal := projectToUnitBounds(x)

	sum := 0.0
	for i := range xFinal {
		sum += xFinal[i]
	}
	if sum <= 0 {
		return nil, fmt.Errorf("degenerate solution: weights sum to %f", sum)
	}

	cleaned := make([]float64, n)
	total := 0.0
	for i := range xFinal {
		w := xFinal[i] / sum
		if w < s.WeightCutoff {
			w = 0
		}
		cleaned[i] = w
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("degenerate solution: all weights below cutoff")
	}

	weights := make(map[string]float64, n)
	var portfolioReturn, portfolioVariance float64
	for i, symbol := range stats.Symbols {
		w := cleaned[i] / total
		weights[symbol] = w
		portfolioReturn += stats.ExpectedReturns[i] * w
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			portfolioVariance += (cleaned[i] / total) * (cleaned[j] / total) * sigma.At(i, j)
		}
	}

	return &Solution{
		Weights:    weights,
		Return:     portfolioReturn,
		Volatility: math.Sqrt(math.Max(portfolioVariance, 0)),
	}, nil
}

// projectToUnitBounds clamps each weight to [0, 1].
func projectToUnitBounds(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(0.0, math.Min(1.0, x[i]))
	}
	return proj
}

// covToDense converts a covariance matrix to gonum form.
func covToDense(cov [][]float64) *mat.Dense {
	n := len(cov)
	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigma.Set(i, j, cov[i][j])
		}
	}
	return sigma
}
