package noise

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ApplySaltAndPepper returns a salt and pepper corrupted copy of x, outside of any graph.
// It draws from s in the same order as the graph form of SaltAndPepper.
func ApplySaltAndPepper(x *tensor.Dense, p float64, s *Stream) (*tensor.Dense, error) {
	keep := tensor.New(tensor.WithShape(x.Shape().Clone()...), tensor.Of(x.Dtype()))
	salt := tensor.New(tensor.WithShape(x.Shape().Clone()...), tensor.Of(x.Dtype()))
	if err := s.Bernoulli(keep, 1-p); err != nil {
		return nil, err
	}
	if err := s.Bernoulli(salt, 0.5); err != nil {
		return nil, err
	}

	retVal := x.Clone().(*tensor.Dense)
	switch data := retVal.Data().(type) {
	case []float32:
		k, sa := keep.Data().([]float32), salt.Data().([]float32)
		peak := maxF32(data)
		for i := range data {
			data[i] = data[i]*k[i] + (1-k[i])*sa[i]*peak
		}
	case []float64:
		k, sa := keep.Data().([]float64), salt.Data().([]float64)
		peak := maxF64(data)
		for i := range data {
			data[i] = data[i]*k[i] + (1-k[i])*sa[i]*peak
		}
	default:
		return nil, errors.Errorf("cannot corrupt a tensor of %v", x.Dtype())
	}
	return retVal, nil
}

func maxF32(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	m := a[0]
	for _, v := range a[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func maxF64(a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	m := a[0]
	for _, v := range a[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
