package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/allocator-bot/internal/modules/prices"
)

// TradingDaysPerYear is the annualization frequency for daily price data.
const TradingDaysPerYear = 252

// Statistics holds the two derived inputs every risk model reuses: the
// annualized expected-return vector and the annualized sample covariance
// matrix, both ordered by Symbols.
type Statistics struct {
	Symbols         []string
	ExpectedReturns []float64   // mu, annualized geometric mean returns
	Covariance      [][]float64 // S, annualized sample covariance (N-1)
}

// ComputeStatistics derives mu and S from a price matrix.
// Expected returns use the compounded (geometric) mean of daily returns,
// annualized at 252 trading days. Covariance is the sample covariance of
// daily returns, also annualized.
func ComputeStatistics(matrix *prices.Matrix) (*Statistics, error) {
	symbols := matrix.Symbols()
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols in price matrix")
	}

	dailyReturns := matrix.DailyReturns()

	var returnLength int
	for _, symbol := range symbols {
		series, ok := dailyReturns[symbol]
		if !ok || len(series) < 2 {
			return nil, fmt.Errorf("insufficient price history for symbol %s: need at least 3 aligned observations", symbol)
		}
		if returnLength == 0 {
			returnLength = len(series)
		}
		if len(series) != returnLength {
			return nil, fmt.Errorf("inconsistent return lengths: expected %d, got %d for symbol %s", returnLength, len(series), symbol)
		}
	}

	mu := make([]float64, len(symbols))
	for i, symbol := range symbols {
		annualized, err := geometricMeanAnnualized(dailyReturns[symbol])
		if err != nil {
			return nil, fmt.Errorf("failed to compute expected return for %s: %w", symbol, err)
		}
		mu[i] = annualized
	}

	cov, err := sampleCovariance(dailyReturns, symbols)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		Symbols:         symbols,
		ExpectedReturns: mu,
		Covariance:      cov,
	}, nil
}

// MaxExpectedReturn returns the largest single-asset expected return.
// No portfolio of long-only weights can average above this ceiling.
func (s *Statistics) MaxExpectedReturn() float64 {
	maxReturn := math.Inf(-1)
	for _, r := range s.ExpectedReturns {
		if r > maxReturn {
			maxReturn = r
		}
	}
	return maxReturn
}

// geometricMeanAnnualized compounds daily returns and annualizes the result:
// (prod(1 + r))^(252/n) - 1.
func geometricMeanAnnualized(returns []float64) (float64, error) {
	n := len(returns)
	if n == 0 {
		return 0, fmt.Errorf("empty return series")
	}

	logSum := 0.0
	for _, r := range returns {
		growth := 1 + r
		if growth <= 0 {
			// A -100% (or worse) day breaks compounding; treat as total loss.
			return -1, nil
		}
		logSum += math.Log(growth)
	}

	annualizedLog := logSum * TradingDaysPerYear / float64(n)
	return math.Exp(annualizedLog) - 1, nil
}

// sampleCovariance calculates the annualized sample covariance matrix of
// daily returns. Element (i,j) is the covariance between symbols[i] and
// symbols[j], using the N-1 denominator.
func sampleCovariance(returns map[string][]float64, symbols []string) ([][]float64, error) {
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	var returnLength int
	for _, symbol := range symbols {
		series, ok := returns[symbol]
		if !ok {
			return nil, fmt.Errorf("missing returns for symbol %s", symbol)
		}
		if returnLength == 0 {
			returnLength = len(series)
		}
		if len(series) != returnLength {
			return nil, fmt.Errorf("inconsistent return lengths: expected %d, got %d for symbol %s", returnLength, len(series), symbol)
		}
	}

	if returnLength < 2 {
		return nil, fmt.Errorf("insufficient data: need at least 2 observations, got %d", returnLength)
	}

	covMatrix := make([][]float64, n)
	for i := range covMatrix {
		covMatrix[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov := stat.Covariance(returns[symbols[i]], returns[symbols[j]], nil) * TradingDaysPerYear
			covMatrix[i][j] = cov
			if i != j {
				covMatrix[j][i] = cov // Symmetry
			}
		}
	}

	return covMatrix, nil
}
