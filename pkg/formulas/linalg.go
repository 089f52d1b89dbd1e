package formulas

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrTooFewObservations is returned when a statistic needs more samples than provided.
var ErrTooFewObservations = errors.New("too few observations")

// RowMeans returns the mean of each row of m.
func RowMeans(m mat.Matrix) []float64 {
	r, c := m.Dims()
	means := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		means[i] = stat.Mean(row, nil)
	}
	return means
}

// CovarianceMatrix returns the unbiased sample covariance of m, treating each
// row as a variable and each column as an observation.
func CovarianceMatrix(m mat.Matrix) (*mat.SymDense, error) {
	r, c := m.Dims()
	if r == 0 {
		return nil, fmt.Errorf("covariance of empty matrix: %w", ErrTooFewObservations)
	}
	if c < 2 {
		return nil, fmt.Errorf("covariance needs at least 2 observations, got %d: %w", c, ErrTooFewObservations)
	}

	cov := mat.NewSymDense(r, nil)
	stat.CovarianceMatrix(cov, m.T(), nil)
	return cov, nil
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// MulVec returns s·w.
func MulVec(s mat.Matrix, w []float64) []float64 {
	r, _ := s.Dims()
	var out mat.VecDense
	out.MulVec(s, mat.NewVecDense(len(w), w))
	res := make([]float64, r)
	for i := range res {
		res[i] = out.AtVec(i)
	}
	return res
}

// QuadForm returns wᵗ·s·w.
func QuadForm(w []float64, s mat.Matrix) float64 {
	v := mat.NewVecDense(len(w), w)
	return mat.Inner(v, s, v)
}

// MaxEigenvalue returns the largest eigenvalue of the symmetric matrix s.
func MaxEigenvalue(s mat.Symmetric) (float64, error) {
	var es mat.EigenSym
	if ok := es.Factorize(s, false); !ok {
		return 0, errors.New("eigen decomposition failed")
	}
	return floats.Max(es.Values(nil)), nil
}

// PolyFit fits a least-squares polynomial of the given degree to (x, y) and
// returns its coefficients, highest power first.
func PolyFit(x, y []float64, degree int) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("polyfit length mismatch: %d x values, %d y values", len(x), len(y))
	}
	if degree < 0 {
		return nil, fmt.Errorf("polyfit degree must be non-negative, got %d", degree)
	}
	if len(x) <= degree {
		return nil, fmt.Errorf("polyfit of degree %d needs more than %d points: %w", degree, len(x), ErrTooFewObservations)
	}

	cols := degree + 1
	vander := mat.NewDense(len(x), cols, nil)
	for i, xi := range x {
		for j := 0; j < cols; j++ {
			vander.Set(i, j, math.Pow(xi, float64(degree-j)))
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(vander, mat.NewVecDense(len(y), y)); err != nil {
		return nil, fmt.Errorf("polyfit least squares failed: %w", err)
	}

	out := make([]float64, cols)
	for j := range out {
		out[j] = coef.AtVec(j)
	}
	return out, nil
}
