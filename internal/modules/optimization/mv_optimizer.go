package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Allocator solves the mean-variance program
//
//	minimize  -μᵀw + γ·wᵀΣw
//	subject to Σw = 1, w ≥ 0, plus the optional ConstraintSet bounds
//
// where γ is the risk-aversion coefficient of the requested risk level.
type Allocator struct {
	solver *ADMMSolver
	log    zerolog.Logger
}

// NewAllocator creates a new allocator.
func NewAllocator(settings QPSettings, log zerolog.Logger) *Allocator {
	return &Allocator{
		solver: NewADMMSolver(settings),
		log:    log.With().Str("component", "allocator").Logger(),
	}
}

// highCorrelation flags near-duplicate return series in failure details.
const highCorrelation = 0.98

// Optimize returns the optimal weights for model. Conflicting bounds fail
// with an infeasible-constraints error before the solver runs; a
// non-PSD covariance or a failed solve is a solver error.
func (a *Allocator) Optimize(
	ctx context.Context,
	model *ReturnRiskModel,
	risk domain.RiskLevel,
	constraints ConstraintSet,
	lookup SectorLookup,
) (*OptimizationResult, error) {
	gamma, err := risk.RiskAversion()
	if err != nil {
		return nil, err
	}
	if err := validateModel(model); err != nil {
		return nil, err
	}

	tickers := model.Tickers
	n := len(tickers)

	diag, err := DiagnoseCovariance(model.Covariance)
	if err != nil {
		return nil, domain.NewSolverError(err, "covariance diagnostics failed").WithDetail("tickers", tickers)
	}
	if !diag.PSD {
		pairs := correlatedPairs(model, highCorrelation)
		a.log.Error().
			Strs("tickers", tickers).
			Float64("min_eigenvalue", diag.MinEigenvalue).
			Float64("max_eigenvalue", diag.MaxEigenvalue).
			Interface("correlated_pairs", pairs).
			Msg("Covariance matrix is not positive semidefinite")
		return nil, domain.NewSolverError(nil, "covariance matrix is not positive semidefinite").
			WithDetail("tickers", tickers).
			WithDetail("min_eigenvalue", diag.MinEigenvalue).
			WithDetail("correlated_pairs", pairs)
	}

	if err := constraints.CheckFeasibility(tickers, lookup); err != nil {
		a.log.Info().
			Err(err).
			Strs("tickers", tickers).
			Interface("constraints", constraints.Summary()).
			Msg("Constraints are infeasible")
		return nil, err
	}

	prob := a.buildProblem(model, gamma, constraints, lookup)
	res, err := a.solver.Solve(ctx, prob)
	if err != nil {
		a.log.Error().
			Err(err).
			Strs("tickers", tickers).
			Float64("gamma", gamma).
			Float64("condition_number", diag.ConditionNumber).
			Interface("constraints", constraints.Summary()).
			Msg("Quadratic program failed")
		msg := "optimizer did not converge"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			msg = "optimization aborted"
		}
		return nil, domain.NewSolverError(err, msg).
			WithDetail("tickers", tickers).
			WithDetail("condition_number", finiteOrNil(diag.ConditionNumber))
	}
	if res.Status == QPSolvedInaccurate {
		a.log.Warn().
			Int("iterations", res.Iterations).
			Float64("primal_residual", res.PrimalResidual).
			Float64("dual_residual", res.DualResidual).
			Msg("Solver stopped at iteration limit with loose tolerance")
	}

	weights := cleanWeights(res.X, constraints.assetCap())
	ret := floats.Dot(model.ExpectedReturn, weights)
	vol := PortfolioVolatility(weights, model.Covariance)
	if !isFinite(ret) || !isFinite(vol) {
		return nil, domain.NewSolverError(nil, "optimizer produced non-finite portfolio statistics").
			WithDetail("tickers", tickers)
	}

	a.log.Debug().
		Int("assets", n).
		Float64("gamma", gamma).
		Int("iterations", res.Iterations).
		Str("status", string(res.Status)).
		Float64("return", ret).
		Float64("volatility", vol).
		Msg("Portfolio optimized")

	return &OptimizationResult{
		Tickers:             append([]string(nil), tickers...),
		Weights:             weights,
		PortfolioReturn:     ret,
		PortfolioVolatility: vol,
		Iterations:          res.Iterations,
		Status:              res.Status,
		ConditionNumber:     diag.ConditionNumber,
	}, nil
}

func validateModel(model *ReturnRiskModel) error {
	if model == nil || len(model.Tickers) == 0 {
		return domain.NewDataInsufficientError("no assets to optimize")
	}
	n := len(model.Tickers)
	if len(model.ExpectedReturn) != n || model.Covariance == nil || model.Covariance.SymmetricDim() != n {
		return domain.NewSolverError(nil, fmt.Sprintf("model dimensions disagree with %d tickers", n))
	}
	for i := 0; i < n; i++ {
		if !isFinite(model.ExpectedReturn[i]) {
			return domain.NewSolverError(nil, "non-finite expected return").WithDetail("ticker", model.Tickers[i])
		}
		for j := i; j < n; j++ {
			if !isFinite(model.Covariance.At(i, j)) {
				return domain.NewSolverError(nil, "non-finite covariance").
					WithDetail("tickers", []string{model.Tickers[i], model.Tickers[j]})
			}
		}
	}
	return nil
}

// buildProblem maps the allocation onto QPProblem with P = 2γΣ and q = -μ.
func (a *Allocator) buildProblem(model *ReturnRiskModel, gamma float64, c ConstraintSet, lookup SectorLookup) QPProblem {
	n := len(model.Tickers)
	p := mat.NewSymDense(n, nil)
	p.ScaleSym(2*gamma, model.Covariance)

	q := make([]float64, n)
	floats.ScaleTo(q, -1, model.ExpectedReturn)

	rows, lower, upper := c.QPRows(model.Tickers, lookup)
	am := mat.NewDense(len(rows), n, nil)
	for r, row := range rows {
		am.SetRow(r, row)
	}

	return QPProblem{P: p, Q: q, A: am, L: lower, U: upper}
}

// cleanWeights removes solver round-off: negatives become zero, weights
// are clipped to the asset cap and renormalized to sum to one.
func cleanWeights(x []float64, assetCap float64) []float64 {
	w := make([]float64, len(x))
	for i, v := range x {
		w[i] = clamp(v, 0, assetCap)
	}
	sum := floats.Sum(w)
	if sum <= 0 {
		return w
	}
	floats.Scale(1/sum, w)
	return w
}

// CorrelatedPair is a pair of assets whose returns move almost together.
type CorrelatedPair struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Correlation float64 `json:"correlation"`
}

func correlatedPairs(model *ReturnRiskModel, threshold float64) []CorrelatedPair {
	corr := CorrelationMatrix(model.Covariance)
	var out []CorrelatedPair
	n := len(model.Tickers)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if c := corr.At(i, j); math.Abs(c) >= threshold {
				out = append(out, CorrelatedPair{A: model.Tickers[i], B: model.Tickers[j], Correlation: c})
			}
		}
	}
	return out
}

func finiteOrNil(v float64) any {
	if isFinite(v) {
		return v
	}
	return nil
}
