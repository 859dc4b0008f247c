package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// QPProblem is the convex quadratic program
//
//	minimize   ½xᵀPx + qᵀx
//	subject to l ≤ Ax ≤ u
//
// Rows with l == u are equality constraints.
type QPProblem struct {
	P *mat.SymDense
	Q []float64
	A *mat.Dense
	L []float64
	U []float64
}

// QPStatus describes how a solve terminated.
type QPStatus string

const (
	QPSolved           QPStatus = "solved"
	QPSolvedInaccurate QPStatus = "solved_inaccurate"
)

// QPSettings tunes the ADMM iteration.
type QPSettings struct {
	Rho           float64 // initial step size for inequality rows
	Sigma         float64 // primal regularization
	Alpha         float64 // over-relaxation, in (0, 2)
	EpsAbs        float64
	EpsRel        float64
	EpsLoose      float64 // residual accepted when the iteration limit is hit
	MaxIterations int
	CheckInterval int // residuals, rho adaptation and ctx are checked this often
}

// DefaultQPSettings returns settings suited to small dense portfolio problems.
func DefaultQPSettings() QPSettings {
	return QPSettings{
		Rho:           0.1,
		Sigma:         1e-6,
		Alpha:         1.6,
		EpsAbs:        1e-7,
		EpsRel:        1e-7,
		EpsLoose:      1e-4,
		MaxIterations: 20000,
		CheckInterval: 25,
	}
}

// QPResult is the primal/dual pair found by the solver.
type QPResult struct {
	X              []float64
	Y              []float64
	Iterations     int
	PrimalResidual float64
	DualResidual   float64
	Status         QPStatus
}

// ErrIterationLimit is returned when residuals stay above EpsLoose.
var ErrIterationLimit = errors.New("qp: iteration limit reached")

const (
	equalityRhoScale = 1e3
	rhoMin           = 1e-6
	rhoMax           = 1e6
	rhoAdaptRatio    = 5.0
)

// ADMMSolver solves QPProblem with the operator-splitting scheme used by
// OSQP: one cached Cholesky factorization of P + σI + AᵀRA per step size,
// over-relaxed updates and residual-balanced step size adaptation.
type ADMMSolver struct {
	settings QPSettings
}

// NewADMMSolver creates a solver. Zero fields fall back to the defaults.
func NewADMMSolver(settings QPSettings) *ADMMSolver {
	def := DefaultQPSettings()
	if settings.Rho <= 0 {
		settings.Rho = def.Rho
	}
	if settings.Sigma <= 0 {
		settings.Sigma = def.Sigma
	}
	if settings.Alpha <= 0 || settings.Alpha >= 2 {
		settings.Alpha = def.Alpha
	}
	if settings.EpsAbs <= 0 {
		settings.EpsAbs = def.EpsAbs
	}
	if settings.EpsRel <= 0 {
		settings.EpsRel = def.EpsRel
	}
	if settings.EpsLoose <= 0 {
		settings.EpsLoose = def.EpsLoose
	}
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = def.MaxIterations
	}
	if settings.CheckInterval <= 0 {
		settings.CheckInterval = def.CheckInterval
	}
	return &ADMMSolver{settings: settings}
}

// Settings returns the effective settings.
func (s *ADMMSolver) Settings() QPSettings { return s.settings }

// admmState is the per-solve workspace.
type admmState struct {
	prob  QPProblem
	n, m  int
	rho   []float64
	eq    []bool
	chol  mat.Cholesky
	sigma float64

	x, z, y []float64
	xt, zt  *mat.VecDense
	rhs     *mat.VecDense
	tmp     *mat.VecDense

	ax, px, aty *mat.VecDense
}

// Solve runs ADMM until the residuals meet the tolerances, the iteration
// limit is reached or ctx is done.
func (s *ADMMSolver) Solve(ctx context.Context, prob QPProblem) (*QPResult, error) {
	st, err := newADMMState(prob, s.settings)
	if err != nil {
		return nil, err
	}
	if err := st.factor(); err != nil {
		return nil, err
	}

	set := s.settings
	var rPrim, rDual float64
	for iter := 1; iter <= set.MaxIterations; iter++ {
		if err := st.step(set.Alpha); err != nil {
			return nil, err
		}

		if iter%set.CheckInterval != 0 && iter != set.MaxIterations {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("qp solve interrupted after %d iterations: %w", iter, err)
		}

		var epsPrim, epsDual, primScale, dualScale float64
		rPrim, rDual, primScale, dualScale = st.residuals()
		epsPrim = set.EpsAbs + set.EpsRel*primScale
		epsDual = set.EpsAbs + set.EpsRel*dualScale
		if rPrim <= epsPrim && rDual <= epsDual {
			return st.result(iter, rPrim, rDual, QPSolved), nil
		}

		if ratio := st.rhoRatio(rPrim, rDual, primScale, dualScale); ratio > rhoAdaptRatio || ratio < 1/rhoAdaptRatio {
			st.scaleRho(ratio)
			if err := st.factor(); err != nil {
				return nil, err
			}
		}
	}

	if rPrim <= set.EpsLoose && rDual <= set.EpsLoose {
		return st.result(set.MaxIterations, rPrim, rDual, QPSolvedInaccurate), nil
	}
	return nil, fmt.Errorf("%w: %d iterations, primal residual %.3g, dual residual %.3g",
		ErrIterationLimit, set.MaxIterations, rPrim, rDual)
}

func newADMMState(prob QPProblem, set QPSettings) (*admmState, error) {
	if prob.P == nil || prob.A == nil {
		return nil, fmt.Errorf("qp: P and A are required")
	}
	n := prob.P.SymmetricDim()
	m, cols := prob.A.Dims()
	switch {
	case n == 0:
		return nil, fmt.Errorf("qp: empty problem")
	case len(prob.Q) != n:
		return nil, fmt.Errorf("qp: q has length %d, want %d", len(prob.Q), n)
	case cols != n:
		return nil, fmt.Errorf("qp: A has %d columns, want %d", cols, n)
	case len(prob.L) != m || len(prob.U) != m:
		return nil, fmt.Errorf("qp: bounds have lengths %d/%d, want %d", len(prob.L), len(prob.U), m)
	}

	st := &admmState{
		prob:  prob,
		n:     n,
		m:     m,
		rho:   make([]float64, m),
		eq:    make([]bool, m),
		sigma: set.Sigma,
		x:     make([]float64, n),
		z:     make([]float64, m),
		y:     make([]float64, m),
		xt:    mat.NewVecDense(n, nil),
		zt:    mat.NewVecDense(m, nil),
		rhs:   mat.NewVecDense(n, nil),
		tmp:   mat.NewVecDense(m, nil),
		ax:    mat.NewVecDense(m, nil),
		px:    mat.NewVecDense(n, nil),
		aty:   mat.NewVecDense(n, nil),
	}
	for i := 0; i < m; i++ {
		if prob.L[i] > prob.U[i] {
			return nil, fmt.Errorf("qp: row %d has lower bound %g above upper bound %g", i, prob.L[i], prob.U[i])
		}
		st.eq[i] = prob.U[i]-prob.L[i] < 1e-12
		st.rho[i] = set.Rho
		if st.eq[i] {
			st.rho[i] = set.Rho * equalityRhoScale
		}
	}

	// Start from the uniform portfolio, which is close for most problems.
	for i := range st.x {
		st.x[i] = 1 / float64(n)
	}
	st.ax.MulVec(prob.A, mat.NewVecDense(n, st.x))
	for i := 0; i < m; i++ {
		st.z[i] = clamp(st.ax.AtVec(i), prob.L[i], prob.U[i])
	}

	return st, nil
}

// factor caches the Cholesky factor of P + σI + Aᵀ diag(ρ) A.
func (st *admmState) factor() error {
	k := mat.NewSymDense(st.n, nil)
	a := st.prob.A
	for i := 0; i < st.n; i++ {
		for j := i; j < st.n; j++ {
			v := st.prob.P.At(i, j)
			if i == j {
				v += st.sigma
			}
			for r := 0; r < st.m; r++ {
				v += st.rho[r] * a.At(r, i) * a.At(r, j)
			}
			k.SetSym(i, j, v)
		}
	}
	if ok := st.chol.Factorize(k); !ok {
		return fmt.Errorf("qp: KKT matrix is not positive definite")
	}
	return nil
}

// step performs one over-relaxed ADMM iteration.
func (st *admmState) step(alpha float64) error {
	for r := 0; r < st.m; r++ {
		st.tmp.SetVec(r, st.rho[r]*st.z[r]-st.y[r])
	}
	st.rhs.MulVec(st.prob.A.T(), st.tmp)
	for i := 0; i < st.n; i++ {
		st.rhs.SetVec(i, st.rhs.AtVec(i)+st.sigma*st.x[i]-st.prob.Q[i])
	}
	if err := st.chol.SolveVecTo(st.xt, st.rhs); err != nil {
		return fmt.Errorf("qp: linear solve failed: %w", err)
	}
	st.zt.MulVec(st.prob.A, st.xt)

	for i := 0; i < st.n; i++ {
		st.x[i] = alpha*st.xt.AtVec(i) + (1-alpha)*st.x[i]
	}
	for r := 0; r < st.m; r++ {
		zr := alpha*st.zt.AtVec(r) + (1-alpha)*st.z[r]
		zNew := clamp(zr+st.y[r]/st.rho[r], st.prob.L[r], st.prob.U[r])
		st.y[r] += st.rho[r] * (zr - zNew)
		st.z[r] = zNew
	}
	return nil
}

// residuals returns the primal and dual residual infinity norms together
// with the scales used by the relative tolerances.
func (st *admmState) residuals() (rPrim, rDual, primScale, dualScale float64) {
	inf := math.Inf(1)
	x := mat.NewVecDense(st.n, st.x)
	y := mat.NewVecDense(st.m, st.y)

	st.ax.MulVec(st.prob.A, x)
	st.px.MulVec(st.prob.P, x)
	st.aty.MulVec(st.prob.A.T(), y)

	for r := 0; r < st.m; r++ {
		rPrim = math.Max(rPrim, math.Abs(st.ax.AtVec(r)-st.z[r]))
	}
	for i := 0; i < st.n; i++ {
		rDual = math.Max(rDual, math.Abs(st.px.AtVec(i)+st.prob.Q[i]+st.aty.AtVec(i)))
	}

	primScale = math.Max(floats.Norm(st.ax.RawVector().Data, inf), floats.Norm(st.z, inf))
	dualScale = math.Max(
		math.Max(floats.Norm(st.px.RawVector().Data, inf), floats.Norm(st.aty.RawVector().Data, inf)),
		floats.Norm(st.prob.Q, inf),
	)
	return rPrim, rDual, primScale, dualScale
}

// rhoRatio estimates how far the step size is from balancing the scaled
// primal and dual residuals.
func (st *admmState) rhoRatio(rPrim, rDual, primScale, dualScale float64) float64 {
	const tiny = 1e-12
	prim := rPrim / (primScale + tiny)
	dual := rDual / (dualScale + tiny)
	return math.Sqrt(prim / (dual + tiny))
}

func (st *admmState) scaleRho(ratio float64) {
	for r := range st.rho {
		st.rho[r] = clamp(st.rho[r]*ratio, rhoMin, rhoMax*equalityRhoScale)
	}
}

func (st *admmState) result(iter int, rPrim, rDual float64, status QPStatus) *QPResult {
	return &QPResult{
		X:              append([]float64(nil), st.x...),
		Y:              append([]float64(nil), st.y...),
		Iterations:     iter,
		PrimalResidual: rPrim,
		DualResidual:   rDual,
		Status:         status,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
