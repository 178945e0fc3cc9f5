package optimization

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/allocator-bot/internal/modules/prices"
)

// syntheticMatrix builds a deterministic random-walk price history.
func syntheticMatrix(t *testing.T, symbols []string, days int) *prices.Matrix {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []prices.Record
	for s, symbol := range symbols {
		price := 100.0 + float64(s)*50
		drift := 0.0005 * float64(s+1)
		for d := 0; d < days; d++ {
			price *= 1 + drift + 0.01*rng.NormFloat64()
			records = append(records, prices.Record{
				Symbol:   symbol,
				Date:     start.AddDate(0, 0, d).Format("2006-01-02"),
				AdjClose: price,
			})
		}
	}

	matrix, err := prices.NewMatrix(symbols, records)
	require.NoError(t, err)
	return matrix
}

func defaultConstraints() Constraints {
	return Constraints{
		RiskFreeRate:     0.02,
		TargetReturn:     0.10,
		TargetVolatility: 0.20,
	}
}

func TestService_RunReturnsAllFourModels(t *testing.T) {
	service := NewService(zerolog.Nop())
	matrix := syntheticMatrix(t, []string{"AAPL", "GOOG"}, 100)

	results, _ := service.Run(matrix, defaultConstraints())

	require.Len(t, results, 4)
	for _, model := range ModelNames {
		result, ok := results[model]
		require.True(t, ok, "missing result for %s", model)
		if result.Status != StatusFailed {
			require.NotNil(t, result.Weights, "%s should carry weights", model)
			sum := 0.0
			for _, w := range result.Weights {
				assert.GreaterOrEqual(t, w, 0.0)
				sum += w
			}
			assert.InDelta(t, 1.0, sum, 1e-6, "%s weights should sum to 1", model)
		} else {
			assert.NotEmpty(t, result.Message, "%s failure needs a message", model)
		}
	}
}

func TestService_UnconstrainedModelsSucceed(t *testing.T) {
	service := NewService(zerolog.Nop())
	matrix := syntheticMatrix(t, []string{"AAPL", "GOOG", "MSFT"}, 120)

	results, _ := service.Run(matrix, defaultConstraints())

	assert.Equal(t, StatusSuccess, results[ModelMaxSharpe].Status)
	assert.Equal(t, StatusSuccess, results[ModelMinVolatility].Status)
}

func TestService_InfeasibleTargetVolatilityIsAdjusted(t *testing.T) {
	service := NewService(zerolog.Nop())
	matrix := syntheticMatrix(t, []string{"AAPL", "GOOG"}, 100)

	constraints := defaultConstraints()
	constraints.TargetVolatility = 1e-6 // below any achievable volatility

	results, notes := service.Run(matrix, constraints)

	result := results[ModelEfficientRisk]
	require.Contains(t, []Status{StatusAdjusted, StatusFailed}, result.Status,
		"infeasible target must never be silently honored")
	assert.NotEmpty(t, result.Message)
	assert.NotEmpty(t, notes[ModelEfficientRisk])

	if result.Status == StatusAdjusted {
		require.NotNil(t, result.Weights)
		assert.Contains(t, result.Message, "adjusted")
	}
}

func TestService_InfeasibleTargetReturnIsAdjusted(t *testing.T) {
	service := NewService(zerolog.Nop())
	matrix := syntheticMatrix(t, []string{"AAPL", "GOOG"}, 100)

	constraints := defaultConstraints()
	constraints.TargetReturn = 100.0 // far above any single-asset return

	results, notes := service.Run(matrix, constraints)

	result := results[ModelEfficientReturn]
	require.Contains(t, []Status{StatusAdjusted, StatusFailed}, result.Status)
	assert.NotEmpty(t, result.Message)
	assert.NotEmpty(t, notes[ModelEfficientReturn])
}

func TestService_AdjustedNotesMentionBothValues(t *testing.T) {
	service := NewService(zerolog.Nop())
	matrix := syntheticMatrix(t, []string{"AAPL", "GOOG"}, 100)

	constraints := defaultConstraints()
	constraints.TargetVolatility = 1e-6

	results, _ := service.Run(matrix, constraints)
	if results[ModelEfficientRisk].Status == StatusAdjusted {
		message := results[ModelEfficientRisk].Message
		assert.Contains(t, message, "minimum achievable volatility")
	}
}

// decliningMatrix builds a price history where every asset loses value,
// so the maximum single-asset expected return is negative.
func decliningMatrix(t *testing.T, symbols []string, days int) *prices.Matrix {
	t.Helper()

	rng := rand.New(rand.NewSource(7))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []prices.Record
	for s, symbol := range symbols {
		price := 100.0 + float64(s)*50
		drift := -0.005 * float64(s+1)
		for d := 0; d < days; d++ {
			price *= 1 + drift + 0.003*rng.NormFloat64()
			records = append(records, prices.Record{
				Symbol:   symbol,
				Date:     start.AddDate(0, 0, d).Format("2006-01-02"),
				AdjClose: price,
			})
		}
	}

	matrix, err := prices.NewMatrix(symbols, records)
	require.NoError(t, err)
	return matrix
}

func TestService_DecliningBasketAdjustsBelowNegativeCeiling(t *testing.T) {
	service := NewService(zerolog.Nop())
	matrix := decliningMatrix(t, []string{"AAPL", "GOOG"}, 100)

	stats, err := ComputeStatistics(matrix)
	require.NoError(t, err)
	ceiling := stats.MaxExpectedReturn()
	require.Negative(t, ceiling, "fixture must produce a negative return ceiling")

	results, _ := service.Run(matrix, defaultConstraints())

	result := results[ModelEfficientReturn]
	require.Contains(t, []Status{StatusAdjusted, StatusFailed}, result.Status)

	if result.Status == StatusAdjusted {
		// The message ends with the adjusted target; it must sit strictly
		// below the ceiling even when the ceiling is negative.
		fields := strings.Fields(result.Message)
		require.NotEmpty(t, fields)
		adjusted, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		require.NoError(t, err)
		assert.Less(t, adjusted, ceiling)
	}
}

func TestService_InsufficientHistoryFailsEveryModel(t *testing.T) {
	service := NewService(zerolog.Nop())
	matrix := syntheticMatrix(t, []string{"AAPL", "GOOG"}, 2)

	results, notes := service.Run(matrix, defaultConstraints())

	require.Len(t, results, 4)
	for _, model := range ModelNames {
		assert.Equal(t, StatusFailed, results[model].Status)
		assert.NotEmpty(t, notes[model])
	}
}

func TestService_AdjustBufferIsConfigurable(t *testing.T) {
	service := NewService(zerolog.Nop())
	service.AdjustBuffer = 0.05
	matrix := syntheticMatrix(t, []string{"AAPL", "GOOG"}, 100)

	constraints := defaultConstraints()
	constraints.TargetVolatility = 1e-6

	results, _ := service.Run(matrix, constraints)
	// The run must still resolve infeasibility one way or the other.
	assert.Contains(t, []Status{StatusAdjusted, StatusFailed}, results[ModelEfficientRisk].Status)
}
