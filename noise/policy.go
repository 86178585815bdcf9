package noise

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Role is the position of a layer in a chain, which decides how it is corrupted.
type Role byte

const (
	Visible Role = iota
	HiddenFirst
	HiddenOther
)

func (r Role) String() string {
	switch r {
	case Visible:
		return "visible"
	case HiddenFirst:
		return "hidden-first"
	case HiddenOther:
		return "hidden"
	}
	return fmt.Sprintf("Role(%d)", byte(r))
}

// RoleOf returns the role of the layer at index i. Index 0 is the visible layer.
func RoleOf(i int) Role {
	switch i {
	case 0:
		return Visible
	case 1:
		return HiddenFirst
	}
	return HiddenOther
}

// Policy corrupts the activations of one layer of a chain.
//
// Corrupt adds the corruption of x at the given 0-based walkback step to x's graph. The noise
// it needs is held in placeholders owned by the policy, and Draw refills all of them, in the
// order they were created. Draw must be called before every run of the graph.
type Policy interface {
	Corrupt(x *G.Node, step int) (*G.Node, error)
	Draw(s *Stream) error
}

// Config selects the corruption policies of a chain.
type Config struct {
	AddNoise           bool
	NoiselessH1        bool
	InputSaltAndPepper float64
	HiddenSigma        float64
	Annealing          float64
}

// Resolve returns the fixed policy for a layer role. name prefixes the names of the
// placeholders the policy creates, and must be unique within a graph.
func Resolve(r Role, conf Config, name string) Policy {
	if !conf.AddNoise {
		return None()
	}
	switch r {
	case Visible:
		return SaltAndPepper(name, Schedule{Base: conf.InputSaltAndPepper, Annealing: conf.Annealing})
	case HiddenFirst:
		if conf.NoiselessH1 {
			return None()
		}
	}
	return Gaussian(name, Schedule{Base: conf.HiddenSigma, Annealing: conf.Annealing})
}

// slot is a placeholder node and the tensor that is bound to it on every draw.
type slot struct {
	node  *G.Node
	value *tensor.Dense
	draw  func(s *Stream, t *tensor.Dense) error
}

type slots []slot

func (ss *slots) add(like *G.Node, name string, draw func(*Stream, *tensor.Dense) error) *G.Node {
	shp := like.Shape().Clone()
	n := G.NewTensor(like.Graph(), like.Dtype(), shp.Dims(), G.WithShape(shp...), G.WithName(name))
	*ss = append(*ss, slot{
		node:  n,
		value: tensor.New(tensor.WithShape(shp...), tensor.Of(like.Dtype())),
		draw:  draw,
	})
	return n
}

func (ss slots) Draw(s *Stream) error {
	for _, sl := range ss {
		if err := sl.draw(s, sl.value); err != nil {
			return errors.WithMessagef(err, "drawing %v", sl.node.Name())
		}
		if err := G.Let(sl.node, sl.value); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// Slots is a set of placeholders drawn from a Stream, for noise that is not a corruption
// policy, such as the bernoulli sampling of a visible layer.
type Slots struct{ slots }

// Uniform adds a placeholder shaped like like, filled with uniform [0, 1) draws.
func (ss *Slots) Uniform(like *G.Node, name string) *G.Node {
	return ss.add(like, name, func(s *Stream, t *tensor.Dense) error { return s.Uniform(t) })
}

// Len is the number of placeholders.
func (ss *Slots) Len() int { return len(ss.slots) }

type none struct{}

// None is the identity policy. It never draws from the stream.
func None() Policy { return none{} }

func (none) Corrupt(x *G.Node, step int) (*G.Node, error) { return x, nil }
func (none) Draw(s *Stream) error { return nil }
func (none) String() string { return "clean" }

type saltAndPepper struct {
	Schedule
	slots
	name string
}

// SaltAndPepper replaces each element with probability p by 0 or by the maximum of the
// tensor, each with probability 0.5. p is annealed across walkback steps.
func SaltAndPepper(name string, sched Schedule) Policy {
	return &saltAndPepper{Schedule: sched, name: name}
}

func (sp *saltAndPepper) String() string { return "salt and pepper" }

func (sp *saltAndPepper) Corrupt(x *G.Node, step int) (retVal *G.Node, err error) {
	p := sp.At(step)
	keep := sp.add(x, fmt.Sprintf("%s_keep_%d", sp.name, step), func(s *Stream, t *tensor.Dense) error { return s.Bernoulli(t, 1-p) })
	salt := sp.add(x, fmt.Sprintf("%s_salt_%d", sp.name, step), func(s *Stream, t *tensor.Dense) error { return s.Bernoulli(t, 0.5) })

	one := constant(x.Dtype(), 1)
	var kept, dropped, peak, pepper *G.Node
	if kept, err = G.HadamardProd(x, keep); err != nil {
		return nil, errors.WithStack(err)
	}
	if dropped, err = G.Sub(one, keep); err != nil {
		return nil, errors.WithStack(err)
	}
	if peak, err = G.Max(x); err != nil {
		return nil, errors.WithStack(err)
	}
	if pepper, err = G.HadamardProd(dropped, salt); err != nil {
		return nil, errors.WithStack(err)
	}
	if pepper, err = G.Mul(pepper, peak); err != nil {
		return nil, errors.WithStack(err)
	}
	if retVal, err = G.Add(kept, pepper); err != nil {
		return nil, errors.WithStack(err)
	}
	return retVal, nil
}

type gaussian struct {
	Schedule
	slots
	name string
}

// Gaussian adds zero-mean gaussian noise of standard deviation sigma, annealed across
// walkback steps.
func Gaussian(name string, sched Schedule) Policy {
	return &gaussian{Schedule: sched, name: name}
}

func (ga *gaussian) String() string { return "gaussian" }

func (ga *gaussian) Corrupt(x *G.Node, step int) (*G.Node, error) {
	sigma := ga.At(step)
	n := ga.add(x, fmt.Sprintf("%s_noise_%d", ga.name, step), func(s *Stream, t *tensor.Dense) error { return s.Normal(t, sigma) })
	retVal, err := G.Add(x, n)
	return retVal, errors.WithStack(err)
}

func constant(dt tensor.Dtype, v float64) *G.Node {
	switch dt {
	case tensor.Float64:
		return G.NewConstant(v)
	}
	return G.NewConstant(float32(v))
}
