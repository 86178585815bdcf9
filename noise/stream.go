// Package noise provides the corruption policies injected into a walkback chain, and the seeded
// stream all of their randomness is drawn from.
package noise

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// Stream is a deterministic pseudo-random stream. Two streams with the same seed produce
// the same draws when they are asked for the same things in the same order.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	src rand.Source
}

// NewStream returns a stream seeded with seed.
func NewStream(seed uint64) *Stream {
	return &Stream{src: rand.NewSource(seed)}
}

// Bernoulli fills t with 1 with probability p, 0 otherwise.
func (s *Stream) Bernoulli(t *tensor.Dense, p float64) error {
	d := distuv.Bernoulli{P: clamp01(p), Src: s.src}
	return fill(t, d.Rand)
}

// Normal fills t with zero-mean gaussian draws of standard deviation sigma.
func (s *Stream) Normal(t *tensor.Dense, sigma float64) error {
	d := distuv.Normal{Mu: 0, Sigma: sigma, Src: s.src}
	return fill(t, d.Rand)
}

// Uniform fills t with draws from [0, 1).
func (s *Stream) Uniform(t *tensor.Dense) error {
	d := distuv.Uniform{Min: 0, Max: 1, Src: s.src}
	return fill(t, d.Rand)
}

// GlorotU draws n weights uniformly in ±gain·sqrt(6/(fanIn+fanOut)).
func (s *Stream) GlorotU(dt tensor.Dtype, gain float64, fanIn, fanOut int) interface{} {
	lim := gain * math.Sqrt(6/float64(fanIn+fanOut))
	d := distuv.Uniform{Min: -lim, Max: lim, Src: s.src}
	n := fanIn * fanOut
	switch dt {
	case tensor.Float32:
		retVal := make([]float32, n)
		for i := range retVal {
			retVal[i] = float32(d.Rand())
		}
		return retVal
	case tensor.Float64:
		retVal := make([]float64, n)
		for i := range retVal {
			retVal[i] = d.Rand()
		}
		return retVal
	}
	panic("GlorotU only supports Float32 and Float64")
}

func fill(t *tensor.Dense, gen func() float64) error {
	switch data := t.Data().(type) {
	case []float32:
		for i := range data {
			data[i] = float32(gen())
		}
	case []float64:
		for i := range data {
			data[i] = gen()
		}
	default:
		return errors.Errorf("cannot fill a tensor of %v with noise", t.Dtype())
	}
	return nil
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
