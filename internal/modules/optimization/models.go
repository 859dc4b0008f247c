// Package optimization builds mean-variance portfolios: it estimates
// annualized returns and covariance from price history, solves the
// constrained quadratic program and formats the resulting allocation.
package optimization

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// PriceTable is a date-aligned price matrix. Prices[t][j] is the close of
// Tickers[j] on Dates[t]; every cell holds a positive finite value.
type PriceTable struct {
	Dates   []time.Time
	Tickers []string
	Prices  [][]float64
}

// ReturnRiskModel holds annualized statistics indexed by Tickers.
type ReturnRiskModel struct {
	Tickers        []string
	ExpectedReturn []float64
	Covariance     *mat.SymDense
	Observations   int // number of daily returns used
}

// OptimizationResult is the solved allocation in model ticker order.
type OptimizationResult struct {
	Tickers             []string
	Weights             []float64
	PortfolioReturn     float64
	PortfolioVolatility float64
	Iterations          int
	Status              QPStatus
	ConditionNumber     float64
}

// Bound is a closed interval on an aggregate weight.
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ConstraintSet lists the optional constraints layered on top of the
// fully-invested long-only base problem. The zero value is the individual
// variant.
type ConstraintSet struct {
	MaxAssetWeight *float64
	SectorBounds   map[string]Bound // keyed by normalized sector
}

// BoundsDefaults are the enterprise bounds applied when a request does not
// override them.
type BoundsDefaults struct {
	MinSectorAlloc float64
	MaxAssetWeight float64
	MaxSectorAlloc float64
}

// DefaultBounds returns the stock enterprise bounds.
func DefaultBounds() BoundsDefaults {
	return BoundsDefaults{
		MinSectorAlloc: 0.05,
		MaxAssetWeight: 0.15,
		MaxSectorAlloc: 0.40,
	}
}

// SectorLookup resolves a ticker's sector.
type SectorLookup interface {
	SectorOf(ticker string) string
}

// AssetLookup resolves the annotations printed on each allocation line.
type AssetLookup interface {
	SectorLookup
	NameOf(ticker string) string
}
