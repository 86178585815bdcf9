package dataset

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// IndexError is returned when an index does not fall within a split.
type IndexError struct {
	Subset Subset
	Index  int
	Len    int
}

func (err *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for %v subset of length %d", err.Index, err.Subset, err.Len)
}

// Split is a pair of index aligned inputs and labels. Inputs is a [n, dim] float32 matrix.
type Split struct {
	subset Subset
	inputs *tensor.Dense
	labels []int
	rows   [][]float32
}

func newSplit(s Subset, p Pair) (*Split, error) {
	n := len(p.Labels)
	if p.Dim <= 0 {
		return nil, errors.Errorf("%v subset has invalid feature dimension %d", s, p.Dim)
	}
	if len(p.Inputs) != n*p.Dim {
		return nil, errors.Errorf("%v subset has %d labels but %d inputs of dimension %d", s, n, len(p.Inputs)/p.Dim, p.Dim)
	}
	inputs := tensor.New(tensor.WithShape(n, p.Dim), tensor.WithBacking(p.Inputs))
	rows, err := native.MatrixF32(inputs)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to view %v inputs as rows", s)
	}
	return &Split{
		subset: s,
		inputs: inputs,
		labels: p.Labels,
		rows:   rows,
	}, nil
}

// Len is the number of rows in the split.
func (s *Split) Len() int { return len(s.labels) }

// Dim is the feature dimension of each row.
func (s *Split) Dim() int { return s.inputs.Shape()[1] }

// Data returns a [len(indices), dim] matrix holding the rows at indices, in the order
// given. Repeated indices are repeated in the result.
func (s *Split) Data(indices ...int) (*tensor.Dense, error) {
	if err := s.check(indices); err != nil {
		return nil, err
	}
	dim := s.Dim()
	backing := make([]float32, 0, len(indices)*dim)
	for _, i := range indices {
		backing = append(backing, s.rows[i]...)
	}
	return tensor.New(tensor.WithShape(len(indices), dim), tensor.WithBacking(backing)), nil
}

// Labels returns the labels at indices, aligned with Data.
func (s *Split) Labels(indices ...int) ([]int, error) {
	if err := s.check(indices); err != nil {
		return nil, err
	}
	retVal := make([]int, len(indices))
	for j, i := range indices {
		retVal[j] = s.labels[i]
	}
	return retVal, nil
}

func (s *Split) check(indices []int) error {
	for _, i := range indices {
		if i < 0 || i >= len(s.labels) {
			return &IndexError{Subset: s.subset, Index: i, Len: len(s.labels)}
		}
	}
	return nil
}
