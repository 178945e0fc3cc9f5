// Package prices builds date-aligned price matrices from raw provider data.
package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Provider fetches raw historical price records for a set of symbols in a
// single batched call. Implemented by the FMP client.
type Provider interface {
	HistoricalPrices(ctx context.Context, symbols []string, startDate, endDate string) ([]Record, error)
}

// Builder fetches historical prices and pivots them into a Matrix.
type Builder struct {
	provider Provider
	log      zerolog.Logger
}

// NewBuilder creates a new price series builder.
func NewBuilder(provider Provider, log zerolog.Logger) *Builder {
	return &Builder{
		provider: provider,
		log:      log.With().Str("component", "prices").Logger(),
	}
}

// Build fetches prices for the symbol set and returns the pivoted matrix.
// An empty end date defaults to today; an empty start date defaults to one
// year before the end date. Provider failures abort the whole request.
func (b *Builder) Build(ctx context.Context, symbols []string, startDate, endDate string) (*Matrix, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	startDate, endDate, err := resolveDateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	records, err := b.provider.HistoricalPrices(ctx, symbols, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("historical data unavailable: %w", err)
	}

	matrix, err := NewMatrix(symbols, records)
	if err != nil {
		return nil, err
	}

	b.log.Debug().
		Strs("symbols", symbols).
		Str("start_date", startDate).
		Str("end_date", endDate).
		Int("trading_days", len(matrix.Dates())).
		Msg("Built price matrix")

	return matrix, nil
}

// resolveDateRange applies the default window: end = today, start = end - 1y.
func resolveDateRange(startDate, endDate string) (string, string, error) {
	const layout = "2006-01-02"

	if endDate == "" {
		endDate = time.Now().Format(layout)
	} else if _, err := time.Parse(layout, endDate); err != nil {
		return "", "", fmt.Errorf("invalid end date %q: %w", endDate, err)
	}

	if startDate == "" {
		end, err := time.Parse(layout, endDate)
		if err != nil {
			return "", "", fmt.Errorf("invalid end date %q: %w", endDate, err)
		}
		startDate = end.AddDate(-1, 0, 0).Format(layout)
	} else if _, err := time.Parse(layout, startDate); err != nil {
		return "", "", fmt.Errorf("invalid start date %q: %w", startDate, err)
	}

	return startDate, endDate, nil
}
