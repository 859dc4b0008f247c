package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CovarianceDiagnostics summarizes the spectrum of a covariance matrix.
type CovarianceDiagnostics struct {
	MinEigenvalue   float64 `json:"min_eigenvalue"`
	MaxEigenvalue   float64 `json:"max_eigenvalue"`
	ConditionNumber float64 `json:"condition_number"` // +Inf when singular
	PSD             bool    `json:"psd"`
}

// psdTolerance scales with the largest eigenvalue.
const psdTolerance = 1e-10

// DiagnoseCovariance checks that cov is positive semidefinite within a
// relative tolerance and reports its condition number.
func DiagnoseCovariance(cov *mat.SymDense) (CovarianceDiagnostics, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return CovarianceDiagnostics{}, fmt.Errorf("eigendecomposition failed")
	}
	values := eig.Values(nil)

	minEig, maxEig := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		minEig = math.Min(minEig, v)
		maxEig = math.Max(maxEig, v)
	}

	tol := psdTolerance * math.Max(1, math.Abs(maxEig))
	d := CovarianceDiagnostics{
		MinEigenvalue:   minEig,
		MaxEigenvalue:   maxEig,
		ConditionNumber: math.Inf(1),
		PSD:             minEig >= -tol,
	}
	if minEig > tol {
		d.ConditionNumber = maxEig / minEig
	}
	return d, nil
}

// PortfolioVariance returns wᵀΣw.
func PortfolioVariance(weights []float64, cov mat.Symmetric) float64 {
	w := mat.NewVecDense(len(weights), weights)
	return mat.Inner(w, cov, w)
}

// PortfolioVolatility returns sqrt(wᵀΣw), clamping tiny negative round-off
// to zero.
func PortfolioVolatility(weights []float64, cov mat.Symmetric) float64 {
	return math.Sqrt(math.Max(0, PortfolioVariance(weights, cov)))
}

// CorrelationMatrix derives correlations from a covariance matrix. Assets
// with zero variance get zero correlation off the diagonal.
func CorrelationMatrix(cov mat.Symmetric) *mat.SymDense {
	n := cov.SymmetricDim()
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			vi, vj := cov.At(i, i), cov.At(j, j)
			if vi > 0 && vj > 0 {
				corr.SetSym(i, j, cov.At(i, j)/math.Sqrt(vi*vj))
			}
		}
	}
	return corr
}
