// Package model produces the toy transformer's vectors and its causal
// multi-head attention matrices. Everything is a pure function of its inputs.
package model

import "math"

// DefaultDimensions is the vector width used when none is configured.
const DefaultDimensions = 16

// Embedding returns the deterministic pseudo-random embedding of tokenID.
// Every value lies in [-1, 1).
func Embedding(tokenID, dims int) []float64 {
	v := make([]float64, dims)
	for i := range v {
		x := math.Sin(float64(tokenID)*float64(i+1)) * 10000
		v[i] = (x-math.Floor(x))*2 - 1
	}
	return v
}

// PositionalEncoding returns the sinusoidal encoding of position. Even
// indices use sine and odd indices use cosine at the frequency of the
// preceding even index.
func PositionalEncoding(position, dims int) []float64 {
	v := make([]float64, dims)
	pos := float64(position)
	for i := range v {
		if i%2 == 0 {
			v[i] = math.Sin(pos / math.Pow(10000, float64(i)/float64(dims)))
		} else {
			v[i] = math.Cos(pos / math.Pow(10000, float64(i-1)/float64(dims)))
		}
	}
	return v
}
