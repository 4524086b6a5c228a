// Package logits turns a context vector into a ranked next-token distribution
// and picks tokens from it.
package logits

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Strategy selects how Sample picks a token.
type Strategy int

const (
	Greedy Strategy = iota
	Random
	TopK
	Temperature
)

const (
	// DefaultTopK is used when a top-k draw is requested with k <= 0.
	DefaultTopK = 5
	// minTemperature replaces non-positive temperatures.
	minTemperature = 1e-6
)

func (s Strategy) String() string {
	switch s {
	case Random:
		return "random"
	case TopK:
		return "top-k"
	case Temperature:
		return "temperature"
	default:
		return "greedy"
	}
}

// ParseStrategy maps a strategy name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "greedy", "argmax":
		return Greedy, nil
	case "random":
		return Random, nil
	case "top-k", "topk", "top_k":
		return TopK, nil
	case "temperature", "temp":
		return Temperature, nil
	default:
		return Greedy, fmt.Errorf("unknown sampling strategy %q", name)
	}
}

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	// Seed for the random source. Negative seeds use the current time.
	Seed        int64
	Strategy    Strategy
	Temperature float64
	TopK        int
}

// Sampler draws tokens from ranked candidate lists. It is not safe for
// concurrent use.
type Sampler struct {
	rng     *rand.Rand
	cfg     SamplerConfig
	weights []float64
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	seed := cfg.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = minTemperature
	}
	return &Sampler{
		rng: rand.New(rand.NewSource(seed)),
		cfg: cfg,
	}
}

// Config returns the effective configuration.
func (s *Sampler) Config() SamplerConfig {
	return s.cfg
}

// Sample picks a token using the configured strategy.
func (s *Sampler) Sample(probs []TokenProb) string {
	switch s.cfg.Strategy {
	case Random:
		return s.SampleRandom(probs)
	case TopK:
		return s.SampleTopK(probs, s.cfg.TopK)
	case Temperature:
		return s.SampleTemperature(probs, s.cfg.Temperature)
	default:
		return SampleGreedy(probs)
	}
}

// SampleGreedy returns the most likely token, preferring the earliest entry
// on ties. For a list sorted by descending probability this is probs[0].
func SampleGreedy(probs []TokenProb) string {
	i := argmax(probs)
	if i < 0 {
		return ""
	}
	return probs[i].Token
}

// SampleRandom draws a token with probability proportional to its weight.
func (s *Sampler) SampleRandom(probs []TokenProb) string {
	if len(probs) == 0 {
		return ""
	}
	w := s.scratch(len(probs))
	for i, p := range probs {
		w[i] = clampWeight(p.Probability)
	}
	return probs[s.draw(w, 0)].Token
}

// SampleTopK restricts the draw to the first k entries of a sorted list.
func (s *Sampler) SampleTopK(probs []TokenProb, k int) string {
	if len(probs) == 0 {
		return ""
	}
	if k <= 0 {
		k = DefaultTopK
	}
	k = min(k, len(probs))
	return s.SampleRandom(probs[:k])
}

// SampleTemperature raises each probability to 1/temperature before a
// weighted draw. Temperatures near zero approach greedy selection and
// temperatures above one flatten the distribution.
func (s *Sampler) SampleTemperature(probs []TokenProb, temperature float64) string {
	if len(probs) == 0 {
		return ""
	}
	if temperature <= 0 {
		temperature = minTemperature
	}
	inv := 1 / temperature
	w := s.scratch(len(probs))
	for i, p := range probs {
		w[i] = clampWeight(math.Pow(clampWeight(p.Probability), inv))
	}
	return probs[s.draw(w, argmax(probs))].Token
}

// draw returns an index with probability proportional to w. When the weights
// sum to zero it returns fallback.
func (s *Sampler) draw(w []float64, fallback int) int {
	var total float64
	for _, v := range w {
		total += v
	}
	if total <= 0 || math.IsInf(total, 0) {
		return fallback
	}
	r := s.rng.Float64() * total
	var c float64
	for i, v := range w {
		c += v
		if r < c {
			return i
		}
	}
	// Rounding can leave r just past the final cumulative sum.
	for i := len(w) - 1; i >= 0; i-- {
		if w[i] > 0 {
			return i
		}
	}
	return fallback
}

func (s *Sampler) scratch(n int) []float64 {
	if cap(s.weights) < n {
		s.weights = make([]float64, n)
	}
	return s.weights[:n]
}

func clampWeight(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	return p
}

// argmax returns the index of the highest probability, or -1 for an empty list.
func argmax(probs []TokenProb) int {
	if len(probs) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i].Probability > probs[best].Probability {
			best = i
		}
	}
	return best
}
