package optimization

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/allocator/internal/domain"
)

// AllocationFormatter turns solved weights into the capital-denominated
// allocation report.
type AllocationFormatter struct {
	lookup AssetLookup
}

// NewAllocationFormatter creates a formatter annotating entries via lookup.
func NewAllocationFormatter(lookup AssetLookup) *AllocationFormatter {
	return &AllocationFormatter{lookup: lookup}
}

// Format emits one entry per ticker, sorted by descending capital. The sort
// key is the unrounded weight × capital and the sort is stable, so exact
// ties keep the input order. Capital is rounded to cents and weights to
// four decimals after ordering.
func (f *AllocationFormatter) Format(tickers []string, weights []float64, capital float64) ([]domain.AllocationEntry, error) {
	if len(tickers) != len(weights) {
		return nil, fmt.Errorf("formatter: %d tickers but %d weights", len(tickers), len(weights))
	}

	order := make([]int, len(tickers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return weights[order[a]]*capital > weights[order[b]]*capital
	})

	entries := make([]domain.AllocationEntry, 0, len(tickers))
	for _, i := range order {
		t := tickers[i]
		entries = append(entries, domain.AllocationEntry{
			Ticker:        t,
			Weight:        roundTo(weights[i], 4),
			CapitalAmount: roundTo(weights[i]*capital, 2),
			Sector:        f.lookup.SectorOf(t),
			IssuerName:    f.lookup.NameOf(t),
		})
	}
	return entries, nil
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
