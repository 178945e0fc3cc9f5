package prices

import (
	"fmt"
	"sort"
)

// Record is a single observation from the price provider: one adjusted
// close price for one symbol on one trading date.
type Record struct {
	Symbol   string
	Date     string // ISO 8601 date (YYYY-MM-DD)
	AdjClose float64
}

// Matrix is a date-indexed, symbol-columned table of adjusted close prices.
// Rows are sorted by date ascending and contain no duplicate (date, symbol)
// pairs. Columns are exactly the requested symbols; a symbol for which the
// provider returned no data simply has no observations, which surfaces as a
// lookup failure downstream rather than a malformed matrix.
type Matrix struct {
	symbols []string
	dates   []string
	cells   map[string]map[string]float64 // date -> symbol -> adj close
}

// NewMatrix pivots raw provider records into matrix form.
// Later records win on duplicate (date, symbol) pairs.
func NewMatrix(symbols []string, records []Record) (*Matrix, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	requested := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		requested[s] = true
	}

	cells := make(map[string]map[string]float64)
	for _, rec := range records {
		if !requested[rec.Symbol] {
			continue
		}
		row, ok := cells[rec.Date]
		if !ok {
			row = make(map[string]float64, len(symbols))
			cells[rec.Date] = row
		}
		row[rec.Symbol] = rec.AdjClose
	}

	dates := make([]string, 0, len(cells))
	for date := range cells {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	return &Matrix{
		symbols: append([]string(nil), symbols...),
		dates:   dates,
		cells:   cells,
	}, nil
}

// Symbols returns the requested symbol columns, in request order.
func (m *Matrix) Symbols() []string {
	return m.symbols
}

// Dates returns the trading dates, ascending.
func (m *Matrix) Dates() []string {
	return m.dates
}

// At returns the price for (date, symbol) and whether it was observed.
func (m *Matrix) At(date, symbol string) (float64, bool) {
	row, ok := m.cells[date]
	if !ok {
		return 0, false
	}
	price, ok := row[symbol]
	return price, ok
}

// LatestPrices returns the most recent observed price per symbol.
// Symbols with no observations at all are absent from the result.
func (m *Matrix) LatestPrices() map[string]float64 {
	latest := make(map[string]float64, len(m.symbols))
	for _, symbol := range m.symbols {
		for i := len(m.dates) - 1; i >= 0; i-- {
			if price, ok := m.cells[m.dates[i]][symbol]; ok {
				latest[symbol] = price
				break
			}
		}
	}
	return latest
}

// CompleteRows returns the price series restricted to dates on which every
// requested symbol has an observation, as a symbol-keyed map of aligned
// columns. The optimizer needs equal-length, date-aligned series.
func (m *Matrix) CompleteRows() map[string][]float64 {
	columns := make(map[string][]float64, len(m.symbols))
	for _, symbol := range m.symbols {
		columns[symbol] = nil
	}

	for _, date := range m.dates {
		row := m.cells[date]
		complete := true
		for _, symbol := range m.symbols {
			if _, ok := row[symbol]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for _, symbol := range m.symbols {
			columns[symbol] = append(columns[symbol], row[symbol])
		}
	}

	return columns
}

// DailyReturns computes simple daily returns per symbol over the aligned
// complete rows. Each series has one fewer element than the aligned prices.
func (m *Matrix) DailyReturns() map[string][]float64 {
	columns := m.CompleteRows()
	returns := make(map[string][]float64, len(columns))
	for symbol, series := range columns {
		if len(series) < 2 {
			returns[symbol] = nil
			continue
		}
		rets := make([]float64, 0, len(series)-1)
		for i := 1; i < len(series); i++ {
			prev := series[i-1]
			if prev == 0 {
				rets = append(rets, 0)
				continue
			}
			rets = append(rets, series[i]/prev-1)
		}
		returns[symbol] = rets
	}
	return returns
}
