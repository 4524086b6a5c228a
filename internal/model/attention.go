package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/explora/internal/tensor"
)

const (
	// DefaultHeads is the number of attention heads used when none is configured.
	DefaultHeads = 4
	// LowAttention is the weight below which a computed cell counts as low.
	LowAttention = 0.05

	querySalt = 7919
	keySalt   = 104729
	seedMod   = 1_000_003
)

// ErrHeadSplit is returned when the vector width cannot be split evenly
// across the requested number of heads.
var ErrHeadSplit = errors.New("dimensions not divisible by heads")

// CellState classifies one entry of an attention weight matrix.
type CellState int

const (
	CellComputed CellState = iota
	CellLow
	CellMasked
)

func (s CellState) String() string {
	switch s {
	case CellMasked:
		return "masked"
	case CellLow:
		return "low"
	default:
		return "computed"
	}
}

// AttentionHead is the result of one causal attention head. Scores holds the
// scaled dot products with -Inf above the diagonal; Weights holds the
// row-wise softmax of Scores.
type AttentionHead struct {
	Index   int
	Scores  [][]float64
	Weights [][]float64
}

// Cell reports whether position i attending to j was masked, computed but
// low, or computed.
func (h AttentionHead) Cell(i, j int) CellState {
	if j > i {
		return CellMasked
	}
	if h.Weights[i][j] < LowAttention {
		return CellLow
	}
	return CellComputed
}

// MultiHeadResult groups every head with their mean weights and the context
// vectors produced by applying the weights to the value slices.
type MultiHeadResult struct {
	Heads    []AttentionHead
	Combined [][]float64
	Context  [][]float64
}

// ProjectionSeed derives the integer seed for one head's projection at one
// position. The salt separates queries from keys.
func ProjectionSeed(head, position, salt int) int {
	h := int64(salt)
	h = (h*31 + int64(head+1)) % seedMod
	h = (h*31 + int64(position+1)) % seedMod
	return int(h) + 1
}

// project slices the head's subspace out of x and modulates it with
// pseudo-random gains in [0.5, 1.5).
func project(x []float64, head, headDim, seed int) []float64 {
	start := head * headDim
	gains := Embedding(seed, headDim)
	out := make([]float64, headDim)
	for k := range out {
		out[k] = x[start+k] * (1 + 0.5*gains[k])
	}
	return out
}

// Attention computes a single causal attention head over vectors, using the
// head's headDim-wide subspace.
func Attention(vectors [][]float64, head, headDim int) (AttentionHead, error) {
	if headDim <= 0 {
		return AttentionHead{}, fmt.Errorf("attention head %d: %w (head dim %d)", head, ErrHeadSplit, headDim)
	}
	end := (head + 1) * headDim
	for pos, v := range vectors {
		if len(v) < end {
			return AttentionHead{}, fmt.Errorf("attention head %d position %d: %w (need %d, have %d)",
				head, pos, tensor.ErrLengthMismatch, end, len(v))
		}
	}

	n := len(vectors)
	q := make([][]float64, n)
	k := make([][]float64, n)
	for pos, v := range vectors {
		q[pos] = project(v, head, headDim, ProjectionSeed(head, pos, querySalt))
		k[pos] = project(v, head, headDim, ProjectionSeed(head, pos, keySalt))
	}

	scale := 1 / math.Sqrt(float64(headDim))
	scores := tensor.NewMatrix(n, n)
	weights := make([][]float64, n)
	for i := range n {
		for j := range n {
			if j > i {
				scores[i][j] = math.Inf(-1)
				continue
			}
			scores[i][j] = tensor.Dot(q[i], k[j]) * scale
		}
		weights[i] = tensor.Softmax(scores[i])
	}

	return AttentionHead{Index: head, Scores: scores, Weights: weights}, nil
}

// MultiHeadAttention splits dims evenly across numHeads, runs every head and
// averages their weights.
func MultiHeadAttention(vectors [][]float64, numHeads, dims int) (MultiHeadResult, error) {
	if numHeads <= 0 || dims <= 0 || dims%numHeads != 0 {
		return MultiHeadResult{}, fmt.Errorf("multi-head attention: %w (%d dims, %d heads)", ErrHeadSplit, dims, numHeads)
	}
	for pos, v := range vectors {
		if len(v) != dims {
			return MultiHeadResult{}, fmt.Errorf("multi-head attention position %d: %w (%d vs %d)",
				pos, tensor.ErrLengthMismatch, len(v), dims)
		}
	}

	headDim := dims / numHeads
	res := MultiHeadResult{
		Heads:   make([]AttentionHead, numHeads),
		Context: tensor.NewMatrix(len(vectors), dims),
	}
	all := make([][][]float64, numHeads)
	for h := range numHeads {
		head, err := Attention(vectors, h, headDim)
		if err != nil {
			return MultiHeadResult{}, err
		}
		res.Heads[h] = head
		all[h] = head.Weights
		applyValues(res.Context, vectors, head.Weights, h*headDim, headDim)
	}

	combined, err := tensor.MeanMatrices(all)
	if err != nil {
		return MultiHeadResult{}, err
	}
	res.Combined = combined
	return res, nil
}

// applyValues writes sum_j w[i][j] * v[j][start:start+width] into
// dst[i][start:start+width].
func applyValues(dst, vectors, w [][]float64, start, width int) {
	for i := range w {
		out := dst[i][start : start+width]
		for j, wij := range w[i] {
			if wij == 0 {
				continue
			}
			v := vectors[j][start : start+width]
			for d := range out {
				out[d] += wij * v[d]
			}
		}
	}
}
