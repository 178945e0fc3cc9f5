package allocation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/allocator-bot/internal/modules/optimization"
)

func TestQuantities_FloorsToWholeShares(t *testing.T) {
	weights := map[string]float64{"AAPL": 0.5, "GOOG": 0.5}
	latestPrices := map[string]float64{"AAPL": 150.0, "GOOG": 2800.0}

	quantities, err := Quantities(weights, latestPrices, 100000)
	require.NoError(t, err)

	// 50000 / 150 = 333.33 -> 333, 50000 / 2800 = 17.86 -> 17
	assert.Equal(t, int64(333), quantities["AAPL"])
	assert.Equal(t, int64(17), quantities["GOOG"])
}

func TestQuantities_MissingPrice(t *testing.T) {
	weights := map[string]float64{"AAPL": 1.0}

	_, err := Quantities(weights, map[string]float64{}, 100000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no latest price for ticker AAPL")
}

func TestQuantities_NonPositivePrice(t *testing.T) {
	weights := map[string]float64{"AAPL": 1.0}

	_, err := Quantities(weights, map[string]float64{"AAPL": 0}, 100000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid latest price")
}

func TestCompose_SuccessRowsInSymbolOrder(t *testing.T) {
	composer := NewComposer(zerolog.Nop())

	results := map[string]optimization.ModelResult{
		optimization.ModelMaxSharpe: {
			Status:  optimization.StatusSuccess,
			Weights: map[string]float64{"AAPL": 0.6, "GOOG": 0.4},
		},
	}

	rows, err := composer.Compose(results, nil, []string{"AAPL", "GOOG"},
		map[string]float64{"AAPL": 100, "GOOG": 200}, 10000)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "AAPL", rows[0].Ticker)
	assert.Equal(t, int64(60), rows[0].Quantity)
	assert.Nil(t, rows[0].Note)
	assert.Equal(t, "GOOG", rows[1].Ticker)
	assert.Equal(t, int64(20), rows[1].Quantity)
}

func TestCompose_FailedModelEmitsSentinelRow(t *testing.T) {
	composer := NewComposer(zerolog.Nop())

	results := map[string]optimization.ModelResult{
		optimization.ModelEfficientRisk: {
			Status:  optimization.StatusFailed,
			Message: "optimization failed: solver did not converge",
		},
	}

	rows, err := composer.Compose(results, nil, []string{"AAPL"},
		map[string]float64{"AAPL": 100}, 10000)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, optimization.ModelEfficientRisk, row.RiskModel)
	assert.Equal(t, SentinelTicker, row.Ticker)
	assert.Zero(t, row.Weight)
	assert.Zero(t, row.Quantity)
	require.NotNil(t, row.Note)
	assert.Contains(t, *row.Note, "did not converge")
}

func TestCompose_AdjustedModelEmitsWeightsAndSentinel(t *testing.T) {
	composer := NewComposer(zerolog.Nop())

	results := map[string]optimization.ModelResult{
		optimization.ModelEfficientReturn: {
			Status:  optimization.StatusAdjusted,
			Message: "target return adjusted to 0.18",
			Weights: map[string]float64{"AAPL": 1.0},
		},
	}

	rows, err := composer.Compose(results, nil, []string{"AAPL"},
		map[string]float64{"AAPL": 100}, 10000)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "AAPL", rows[0].Ticker)
	assert.Equal(t, SentinelTicker, rows[1].Ticker)
	require.NotNil(t, rows[1].Note)
	assert.Contains(t, *rows[1].Note, "adjusted")
}

func TestCompose_ModelsOrderedCanonically(t *testing.T) {
	composer := NewComposer(zerolog.Nop())

	results := map[string]optimization.ModelResult{}
	for _, model := range optimization.ModelNames {
		results[model] = optimization.ModelResult{
			Status:  optimization.StatusSuccess,
			Weights: map[string]float64{"AAPL": 1.0},
		}
	}

	rows, err := composer.Compose(results, nil, []string{"AAPL"},
		map[string]float64{"AAPL": 50}, 1000)
	require.NoError(t, err)
	require.Len(t, rows, len(optimization.ModelNames))

	for i, model := range optimization.ModelNames {
		assert.Equal(t, model, rows[i].RiskModel)
	}
}

func TestCompose_MissingPriceFailsRequest(t *testing.T) {
	composer := NewComposer(zerolog.Nop())

	results := map[string]optimization.ModelResult{
		optimization.ModelMaxSharpe: {
			Status:  optimization.StatusSuccess,
			Weights: map[string]float64{"AAPL": 0.5, "GOOG": 0.5},
		},
	}

	_, err := composer.Compose(results, nil, []string{"AAPL", "GOOG"},
		map[string]float64{"AAPL": 100}, 10000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOG")
}
