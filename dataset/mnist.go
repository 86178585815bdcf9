package dataset

import (
	"github.com/pkg/errors"
)

// BinaryCutoff is the threshold above which a binarized MNIST pixel becomes 1.
const BinaryCutoff float32 = 0.5

// Pair is a decoded (inputs, labels) pair. Inputs are row major with Dim features per row.
type Pair struct {
	Inputs []float32
	Labels []int
	Dim    int
}

// Len is the number of rows in the pair.
func (p Pair) Len() int { return len(p.Labels) }

// validate checks that every label has exactly one row of Dim inputs.
func (p Pair) validate(s Subset) error {
	if p.Len() == 0 && len(p.Inputs) == 0 {
		return nil
	}
	if p.Dim <= 0 {
		return errors.Errorf("%v subset has invalid feature dimension %d", s, p.Dim)
	}
	if len(p.Inputs) != p.Len()*p.Dim {
		return errors.Errorf("%v subset has %d labels but %d inputs of dimension %d", s, p.Len(), len(p.Inputs), p.Dim)
	}
	return nil
}

// Raw is the decoded result of a dataset source: three (inputs, labels) pairs.
type Raw struct {
	Train, Valid, Test Pair
}

// NewMNIST creates the MNIST dataset from its decoded pairs. The valid rows are appended to
// the train rows, after which the VALID subset is absent. The slices held by raw are owned by
// the returned dataset.
func NewMNIST(raw Raw, opts ...Option) (*Dataset, error) {
	o := makeOptions(opts)
	o.logger.Printf("Loading MNIST with binary=%t", o.binary)
	for s, p := range [...]Pair{Train: raw.Train, Valid: raw.Valid, Test: raw.Test} {
		if err := p.validate(Subset(s)); err != nil {
			return nil, err
		}
	}

	if o.binary {
		o.logger.Printf("Making MNIST X values binary with cutoff %v", BinaryCutoff)
		Binarize(raw.Train.Inputs, BinaryCutoff)
		Binarize(raw.Valid.Inputs, BinaryCutoff)
		Binarize(raw.Test.Inputs, BinaryCutoff)
	}

	train, err := concat(raw.Train, raw.Valid)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to merge valid into train")
	}

	d := &Dataset{name: "MNIST", logger: o.logger}
	if train.Len() > 0 {
		if d.splits[Train], err = newSplit(Train, train); err != nil {
			return nil, err
		}
	}
	if raw.Test.Len() > 0 {
		if d.splits[Test], err = newSplit(Test, raw.Test); err != nil {
			return nil, err
		}
	}
	for s := Train; s < numSubsets; s++ {
		if split, ok := d.Split(s); ok {
			o.logger.Printf("%v shape is (%d, %d)", s, split.Len(), split.Dim())
		}
	}
	return d, nil
}

func concat(a, b Pair) (Pair, error) {
	switch {
	case b.Len() == 0:
		return a, nil
	case a.Len() == 0:
		return b, nil
	case a.Dim != b.Dim:
		return Pair{}, errors.Errorf("feature dimensions differ: %d vs %d", a.Dim, b.Dim)
	}
	inputs := make([]float32, 0, len(a.Inputs)+len(b.Inputs))
	inputs = append(inputs, a.Inputs...)
	inputs = append(inputs, b.Inputs...)
	labels := make([]int, 0, a.Len()+b.Len())
	labels = append(labels, a.Labels...)
	labels = append(labels, b.Labels...)
	return Pair{Inputs: inputs, Labels: labels, Dim: a.Dim}, nil
}

// Binarize sets each value to 1 if it is strictly greater than cutoff, otherwise 0.
func Binarize(data []float32, cutoff float32) {
	for i, v := range data {
		if v > cutoff {
			data[i] = 1
		} else {
			data[i] = 0
		}
	}
}
