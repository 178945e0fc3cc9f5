// Package allocation converts optimized weight vectors into per-asset share
// quantities and assembles the tabular allocation result.
package allocation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfold/allocator-bot/internal/modules/optimization"
)

// SentinelTicker marks a model-level failure or adjustment row. A row with
// this ticker and a non-nil Note is a diagnostic, not an asset allocation.
const SentinelTicker = "N/A"

// Row is one line of the allocation table.
type Row struct {
	RiskModel string  `json:"Risk Model"`
	Ticker    string  `json:"Ticker"`
	Weight    float64 `json:"Weight"`
	Quantity  int64   `json:"Quantity"`
	Note      *string `json:"Note"`
}

// Composer builds allocation tables from risk-model results.
type Composer struct {
	log zerolog.Logger
}

// NewComposer creates a new allocation composer.
func NewComposer(log zerolog.Logger) *Composer {
	return &Composer{
		log: log.With().Str("component", "allocation").Logger(),
	}
}

// Compose builds the ordered allocation table. Models with weights emit one
// row per ticker (in symbol order); models recorded only as a failure emit a
// single sentinel note row; adjusted models emit both their per-ticker rows
// and a sentinel row documenting the adjustment.
//
// A requested ticker with no latest price makes quantity calculation
// impossible and fails the whole request.
func (c *Composer) Compose(
	results map[string]optimization.ModelResult,
	notes map[string]string,
	symbols []string,
	latestPrices map[string]float64,
	totalInvestment float64,
) ([]Row, error) {
	var rows []Row

	for _, model := range optimization.ModelNames {
		result, ok := results[model]
		if !ok {
			continue
		}

		if result.Status == optimization.StatusFailed {
			rows = append(rows, sentinelRow(model, result.Message))
			continue
		}

		quantities, err := Quantities(result.Weights, latestPrices, totalInvestment)
		if err != nil {
			return nil, fmt.Errorf("failed to compute quantities for %s: %w", model, err)
		}

		for _, symbol := range symbols {
			weight, ok := result.Weights[symbol]
			if !ok {
				continue
			}
			rows = append(rows, Row{
				RiskModel: model,
				Ticker:    symbol,
				Weight:    weight,
				Quantity:  quantities[symbol],
			})
		}

		if result.Status == optimization.StatusAdjusted {
			message := result.Message
			if message == "" {
				message = notes[model]
			}
			rows = append(rows, sentinelRow(model, message))
		}
	}

	c.log.Debug().
		Int("rows", len(rows)).
		Float64("total_investment", totalInvestment).
		Msg("Composed allocation table")

	return rows, nil
}

// Quantities computes integer share counts per ticker as
// floor(total * weight / latestPrice). Quantities never exceed the
// proportional dollar allocation and are never fractional.
func Quantities(weights map[string]float64, latestPrices map[string]float64, totalInvestment float64) (map[string]int64, error) {
	quantities := make(map[string]int64, len(weights))
	for ticker, weight := range weights {
		price, ok := latestPrices[ticker]
		if !ok {
			return nil, fmt.Errorf("no latest price for ticker %s", ticker)
		}
		if price <= 0 {
			return nil, fmt.Errorf("invalid latest price %f for ticker %s", price, ticker)
		}
		quantities[ticker] = int64(math.Floor(totalInvestment * weight / price))
	}
	return quantities, nil
}

// sentinelRow builds the diagnostic row for a failed or adjusted model.
func sentinelRow(model, message string) Row {
	note := message
	return Row{
		RiskModel: model,
		Ticker:    SentinelTicker,
		Weight:    0.0,
		Quantity:  0,
		Note:      &note,
	}
}
