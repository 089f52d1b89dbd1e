package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRowMeans(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		-1, 0, 4,
	})

	means := RowMeans(m)
	assert.InDeltaSlice(t, []float64{2, 1}, means, 1e-12)
}

func TestCovarianceMatrix(t *testing.T) {
	// Rows are assets, columns are periods
	m := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		2, 4, 6, 8,
	})

	cov, err := CovarianceMatrix(m)
	require.NoError(t, err)

	varX := Variance([]float64{1, 2, 3, 4})
	assert.InDelta(t, varX, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 4*varX, cov.At(1, 1), 1e-12)
	assert.InDelta(t, 2*varX, cov.At(0, 1), 1e-12)
	assert.InDelta(t, cov.At(0, 1), cov.At(1, 0), 1e-12)
}

func TestCovarianceMatrix_TooFewObservations(t *testing.T) {
	_, err := CovarianceMatrix(mat.NewDense(3, 1, []float64{1, 2, 3}))
	assert.ErrorIs(t, err, ErrTooFewObservations)
}

func TestQuadFormAndMulVec(t *testing.T) {
	s := mat.NewSymDense(2, []float64{
		2, 1,
		1, 3,
	})
	w := []float64{0.5, 0.5}

	// 0.25*2 + 2*0.25*1 + 0.25*3
	assert.InDelta(t, 1.75, QuadForm(w, s), 1e-12)
	assert.InDeltaSlice(t, []float64{1.5, 2.0}, MulVec(s, w), 1e-12)
	assert.InDelta(t, 1.75, Dot(w, MulVec(s, w)), 1e-12)
}

func TestMaxEigenvalue(t *testing.T) {
	s := mat.NewSymDense(3, []float64{
		4, 0, 0,
		0, 1, 0,
		0, 0, 2,
	})

	lambda, err := MaxEigenvalue(s)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, lambda, 1e-10)
}

func TestPolyFit(t *testing.T) {
	x := []float64{-2, -1, 0, 1, 2, 3}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 0.5*xi*xi - 2*xi + 3
	}

	coef, err := PolyFit(x, y, 2)
	require.NoError(t, err)
	require.Len(t, coef, 3)
	assert.InDelta(t, 0.5, coef[0], 1e-9)
	assert.InDelta(t, -2.0, coef[1], 1e-9)
	assert.InDelta(t, 3.0, coef[2], 1e-9)
}

func TestPolyFit_Errors(t *testing.T) {
	_, err := PolyFit([]float64{1, 2}, []float64{1}, 1)
	assert.Error(t, err)

	_, err = PolyFit([]float64{1, 2}, []float64{1, 2}, 2)
	assert.ErrorIs(t, err, ErrTooFewObservations)
}
