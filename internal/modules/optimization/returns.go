package optimization

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BuildPriceTable aligns per-ticker series on a common date index. Tickers
// without any usable close are dropped and returned separately; remaining
// dates are kept only when every kept ticker has a positive finite close
// (inner join). Column order follows tickers.
func BuildPriceTable(series map[string][]domain.PricePoint, tickers []string) (*PriceTable, []string) {
	type dayKey = int64

	kept := make([]string, 0, len(tickers))
	var dropped []string
	closes := make([]map[dayKey]float64, 0, len(tickers))

	for _, ticker := range tickers {
		byDay := make(map[dayKey]float64, len(series[ticker]))
		for _, p := range series[ticker] {
			if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
				continue
			}
			byDay[dayOf(p.Date)] = p.Close
		}
		if len(byDay) == 0 {
			dropped = append(dropped, ticker)
			continue
		}
		kept = append(kept, ticker)
		closes = append(closes, byDay)
	}

	table := &PriceTable{Tickers: kept}
	if len(kept) == 0 {
		return table, dropped
	}

	days := make([]dayKey, 0, len(closes[0]))
	for day := range closes[0] {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

rows:
	for _, day := range days {
		row := make([]float64, len(kept))
		for j, byDay := range closes {
			v, ok := byDay[day]
			if !ok {
				continue rows
			}
			row[j] = v
		}
		table.Dates = append(table.Dates, time.Unix(day*86400, 0).UTC())
		table.Prices = append(table.Prices, row)
	}

	return table, dropped
}

func dayOf(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// ReturnsEstimator turns a PriceTable into annualized expected returns and
// covariance from simple daily returns.
type ReturnsEstimator struct {
	log zerolog.Logger
}

// NewReturnsEstimator creates a new estimator.
func NewReturnsEstimator(log zerolog.Logger) *ReturnsEstimator {
	return &ReturnsEstimator{
		log: log.With().Str("component", "returns_estimator").Logger(),
	}
}

// MinReturnObservations is the fewest daily returns a sample covariance
// can be computed from.
const MinReturnObservations = 2

// Estimate computes the ReturnRiskModel. It fails with a data-insufficient
// error when the table has no tickers or too few aligned dates.
func (e *ReturnsEstimator) Estimate(table *PriceTable) (*ReturnRiskModel, error) {
	if table == nil || len(table.Tickers) == 0 {
		return nil, domain.NewDataInsufficientError("no tickers with usable price history")
	}

	n := len(table.Tickers)
	rows := usableRows(table)
	if len(rows)-1 < MinReturnObservations {
		return nil, domain.NewDataInsufficientError(
			fmt.Sprintf("need at least %d aligned trading dates, got %d", MinReturnObservations+1, len(rows)),
		).WithDetail("tickers", table.Tickers).WithDetail("aligned_dates", len(rows))
	}

	obs := len(rows) - 1
	returns := mat.NewDense(obs, n, nil)
	for t := 1; t < len(rows); t++ {
		prev, cur := rows[t-1], rows[t]
		for j := 0; j < n; j++ {
			returns.Set(t-1, j, cur[j]/prev[j]-1)
		}
	}

	mu := make([]float64, n)
	col := make([]float64, obs)
	for j := 0; j < n; j++ {
		mat.Col(col, j, returns)
		mu[j] = stat.Mean(col, nil) * TradingDaysPerYear
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, returns, nil)
	cov.ScaleSym(TradingDaysPerYear, cov)

	for j := 0; j < n; j++ {
		if !isFinite(mu[j]) || !isFinite(cov.At(j, j)) {
			return nil, domain.NewDataInsufficientError(
				fmt.Sprintf("non-finite statistics for %s", table.Tickers[j]),
			).WithDetail("ticker", table.Tickers[j])
		}
	}

	e.log.Debug().
		Int("tickers", n).
		Int("observations", obs).
		Msg("Estimated return/risk model")

	return &ReturnRiskModel{
		Tickers:        append([]string(nil), table.Tickers...),
		ExpectedReturn: mu,
		Covariance:     cov,
		Observations:   obs,
	}, nil
}

// usableRows drops rows holding any non-positive or non-finite price.
func usableRows(table *PriceTable) [][]float64 {
	out := make([][]float64, 0, len(table.Prices))
	for _, row := range table.Prices {
		if len(row) != len(table.Tickers) {
			continue
		}
		ok := true
		for _, v := range row {
			if v <= 0 || !isFinite(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
