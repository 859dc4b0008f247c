package optimization

import (
	"context"
	"math"
	"time"

	"github.com/aristath/allocator/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// sectorMap is an AssetLookup backed by a map.
type sectorMap map[string]string

func (m sectorMap) SectorOf(ticker string) string {
	if s, ok := m[ticker]; ok {
		return s
	}
	return domain.UnknownLabel
}

func (m sectorMap) NameOf(ticker string) string {
	if _, ok := m[ticker]; ok {
		return ticker + " Corp"
	}
	return domain.UnknownLabel
}

// factorModel builds a positive definite constant-correlation model whose
// expected return and volatility both rise with the asset index.
func factorModel(tickers []string, rho float64) *ReturnRiskModel {
	n := len(tickers)
	mu := make([]float64, n)
	sigma := make([]float64, n)
	for i := range tickers {
		mu[i] = 0.04 + 0.02*float64(i)
		sigma[i] = 0.12 + 0.03*float64(i)
	}
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := rho * sigma[i] * sigma[j]
			if i == j {
				v = sigma[i] * sigma[i]
			}
			cov.SetSym(i, j, v)
		}
	}
	return &ReturnRiskModel{Tickers: tickers, ExpectedReturn: mu, Covariance: cov, Observations: 1000}
}

// deterministicSeries compounds r_t = drift + amp·sin(freq·t + phase) from
// 100 over business days starting 2021-01-04.
func deterministicSeries(days int, drift, amp, freq, phase float64) []domain.PricePoint {
	out := make([]domain.PricePoint, 0, days)
	price := 100.0
	date := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	for t := 0; len(out) < days; t++ {
		for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
		if t > 0 {
			price *= 1 + drift + amp*math.Sin(freq*float64(t)+phase)
		}
		out = append(out, domain.PricePoint{Date: date, Close: price})
		date = date.AddDate(0, 0, 1)
	}
	return out
}

// stubPrices serves fixed series and records the tickers requested.
type stubPrices struct {
	series    map[string][]domain.PricePoint
	err       error
	requested []string
}

func (s *stubPrices) GetPriceHistory(ctx context.Context, tickers []string, start, end time.Time) (map[string][]domain.PricePoint, error) {
	s.requested = append([]string(nil), tickers...)
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string][]domain.PricePoint, len(tickers))
	for _, t := range tickers {
		out[t] = s.series[t]
	}
	return out, nil
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}
