// Package tensor holds the small vector and matrix helpers shared by the
// simulation. Vectors are plain []float64 and matrices are row-major [][]float64
// so that snapshots can be rendered and serialised without conversion.
package tensor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrLengthMismatch is returned when two vectors that must align do not.
var ErrLengthMismatch = errors.New("vector length mismatch")

// AddVectors returns the element-wise sum of a and b.
func AddVectors(a, b []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("add vectors: %w (%d vs %d)", ErrLengthMismatch, len(a), len(b))
	}
	dst := make([]float64, len(a))
	floats.AddTo(dst, a, b)
	return dst, nil
}

// Dot computes the dot product of a and b. Both must have the same length.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// Softmax returns the softmax of x, treating non-finite entries as masked.
// Masked entries receive zero weight. If every entry is masked the result is
// all zeros rather than NaN.
func Softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	maxv := math.Inf(-1)
	for _, v := range x {
		if isFinite(v) && v > maxv {
			maxv = v
		}
	}
	if math.IsInf(maxv, -1) {
		return out
	}
	var sum float64
	for i, v := range x {
		if !isFinite(v) {
			continue
		}
		e := math.Exp(v - maxv)
		out[i] = e
		sum += e
	}
	if sum == 0 {
		return out
	}
	floats.Scale(1/sum, out)
	return out
}

// Sum returns the sum of the elements of x.
func Sum(x []float64) float64 {
	return floats.Sum(x)
}

// Argmax returns the index of the largest element, preferring the first on
// ties. It returns -1 for an empty slice.
func Argmax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}

// NewMatrix allocates a rows x cols zero matrix.
func NewMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	backing := make([]float64, rows*cols)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}

// MeanMatrices returns the element-wise arithmetic mean of equally shaped
// matrices. It returns nil when ms is empty.
func MeanMatrices(ms [][][]float64) ([][]float64, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	rows := len(ms[0])
	cols := 0
	if rows > 0 {
		cols = len(ms[0][0])
	}
	out := NewMatrix(rows, cols)
	for k, m := range ms {
		if len(m) != rows {
			return nil, fmt.Errorf("mean matrices: matrix %d: %w (%d rows vs %d)", k, ErrLengthMismatch, len(m), rows)
		}
		for i := range m {
			if len(m[i]) != cols {
				return nil, fmt.Errorf("mean matrices: matrix %d row %d: %w", k, i, ErrLengthMismatch)
			}
			floats.Add(out[i], m[i])
		}
	}
	inv := 1 / float64(len(ms))
	for i := range out {
		floats.Scale(inv, out[i])
	}
	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
