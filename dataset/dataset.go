// Package dataset holds the indexed, subset-aware datasets consumed by the training loop.
package dataset

import (
	"fmt"
	"io"
	"log"

	"gorgonia.org/tensor"
)

// Subset is one of the TRAIN, VALID or TEST partitions of a dataset.
type Subset int

const (
	Train Subset = iota
	Valid
	Test

	numSubsets
)

func (s Subset) String() string {
	switch s {
	case Train:
		return "train"
	case Valid:
		return "valid"
	case Test:
		return "test"
	}
	return fmt.Sprintf("Subset(%d)", int(s))
}

// Dataset is a set of up to three splits. A split that does not exist is absent, which is
// reported as a value rather than an error.
type Dataset struct {
	name   string
	splits [numSubsets]*Split
	logger *log.Logger
}

// Name returns the name of the dataset.
func (d *Dataset) Name() string { return d.name }

// Split returns the split for the given subset. ok is false if the subset is absent.
func (d *Dataset) Split(s Subset) (split *Split, ok bool) {
	if s < 0 || s >= numSubsets {
		return nil, false
	}
	split = d.splits[s]
	return split, split != nil
}

// Data returns the input rows at the given indices of the subset, in the order given.
// ok is false if the subset is absent. An out of range index returns an *IndexError.
func (d *Dataset) Data(s Subset, indices ...int) (retVal *tensor.Dense, ok bool, err error) {
	split, ok := d.Split(s)
	if !ok {
		return nil, false, nil
	}
	retVal, err = split.Data(indices...)
	return retVal, true, err
}

// Labels returns the labels at the given indices of the subset, aligned with Data.
func (d *Dataset) Labels(s Subset, indices ...int) (retVal []int, ok bool, err error) {
	split, ok := d.Split(s)
	if !ok {
		return nil, false, nil
	}
	retVal, err = split.Labels(indices...)
	return retVal, true, err
}

// Len returns the number of rows in the subset, or 0 if it is absent.
func (d *Dataset) Len(s Subset) int {
	if split, ok := d.Split(s); ok {
		return split.Len()
	}
	return 0
}

// Option configures the construction of a dataset.
type Option func(*options)

type options struct {
	binary bool
	logger *log.Logger
}

// WithBinary binarizes every input at the MNIST cutoff when set.
func WithBinary(binary bool) Option {
	return func(o *options) { o.binary = binary }
}

// WithLogger sets the logger used while constructing the dataset.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func makeOptions(opts []Option) options {
	o := options{logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
