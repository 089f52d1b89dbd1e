package optimization

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/pkg/formulas"
)

var errNotConverged = errors.New("iteration limit reached before convergence")

// simplexQP minimizes λ·wᵗΣw − meanᵗw subject to w >= 0 and sum(w) = 1 with an
// accelerated projected gradient method and adaptive restart.
type simplexQP struct {
	cov       *mat.SymDense
	mean      []float64
	lambdaMax float64
	tol       float64
	maxIter   int
}

func newSimplexQP(cov *mat.SymDense, mean []float64, tol float64, maxIter int) (*simplexQP, error) {
	lambdaMax, err := formulas.MaxEigenvalue(cov)
	if err != nil {
		return nil, err
	}
	return &simplexQP{
		cov:       cov,
		mean:      mean,
		lambdaMax: math.Max(lambdaMax, 0),
		tol:       tol,
		maxIter:   maxIter,
	}, nil
}

// solve returns the minimizer for risk aversion lambda and the iterations used.
func (q *simplexQP) solve(lambda float64) ([]float64, int, error) {
	n := len(q.mean)
	lipschitz := 2 * lambda * q.lambdaMax
	if lipschitz <= 1e-300 {
		// Purely linear objective: all weight on the highest mean.
		w := make([]float64, n)
		w[floats.MaxIdx(q.mean)] = 1
		return w, 0, nil
	}
	step := 1 / lipschitz

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	y := append([]float64(nil), w...)
	z := make([]float64, n)
	t := 1.0

	for k := 1; k <= q.maxIter; k++ {
		grad := formulas.MulVec(q.cov, y)
		for i := range z {
			z[i] = y[i] - step*(2*lambda*grad[i]-q.mean[i])
		}
		next := projectSimplex(z)

		// Gradient mapping residual at y.
		residual := 0.0
		for i := range next {
			residual = math.Max(residual, math.Abs(next[i]-y[i]))
		}
		if residual <= q.tol {
			return next, k, nil
		}

		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		restart := 0.0
		for i := range next {
			restart += (y[i] - next[i]) * (next[i] - w[i])
		}
		if restart > 0 {
			tNext = 1
			copy(y, next)
		} else {
			beta := (t - 1) / tNext
			for i := range y {
				y[i] = next[i] + beta*(next[i]-w[i])
			}
		}
		w, t = next, tNext
	}
	return w, q.maxIter, errNotConverged
}

// projectSimplex returns the Euclidean projection of v onto the probability simplex.
func projectSimplex(v []float64) []float64 {
	u := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	css := 0.0
	theta := 0.0
	for i, ui := range u {
		css += ui
		candidate := (css - 1) / float64(i+1)
		if ui-candidate > 0 {
			theta = candidate
		}
	}

	out := make([]float64, len(v))
	for i, vi := range v {
		out[i] = math.Max(vi-theta, 0)
	}
	return out
}
