package gsn

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

type maebe struct {
	err error
}

// generic monad... may be useful
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

type activation func(*G.Node) (*G.Node, error)

var activations = map[string]activation{
	"sigmoid":   G.Sigmoid,
	"tanh":      G.Tanh,
	"rectifier": G.Rectify,
	"identity":  func(x *G.Node) (*G.Node, error) { return x, nil },
}

type costFn func(m *maebe, output, target *G.Node) *G.Node

var costs = map[string]costFn{
	"binary_crossentropy": (*maebe).xent,
	"mse":                 (*maebe).mse,
}

func (m *maebe) activate(name string, x *G.Node) *G.Node {
	fn := activations[name]
	return m.do(func() (*G.Node, error) { return fn(x) })
}

// affine computes input·w (or input·wᵀ when transposed) and adds it to acc, if acc is not nil.
func (m *maebe) affine(acc, input, w *G.Node, transposed bool) *G.Node {
	if m.err != nil {
		return nil
	}
	if transposed {
		w = m.do(func() (*G.Node, error) { return G.Transpose(w) })
	}
	xw := m.do(func() (*G.Node, error) { return G.Mul(input, w) })
	if acc == nil {
		return xw
	}
	return m.do(func() (*G.Node, error) { return G.Add(acc, xw) })
}

// bias adds a [1, n] bias to every row of a [batch, n] input.
func (m *maebe) bias(input, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.BroadcastAdd(input, b, nil, []byte{0}) })
}

// xent is the binary cross entropy of output against target, averaged.
func (m *maebe) xent(output, target *G.Node) (retVal *G.Node) {
	one := scalar(1)
	eps := scalar(1e-7)

	omy := m.do(func() (*G.Node, error) { return G.Sub(one, target) })
	omout := m.do(func() (*G.Node, error) { return G.Sub(one, output) })

	logOut := m.do(func() (*G.Node, error) { return G.Add(output, eps) })
	logOut = m.do(func() (*G.Node, error) { return G.Log(logOut) })
	logOmOut := m.do(func() (*G.Node, error) { return G.Add(omout, eps) })
	logOmOut = m.do(func() (*G.Node, error) { return G.Log(logOmOut) })

	fst := m.do(func() (*G.Node, error) { return G.HadamardProd(target, logOut) })
	snd := m.do(func() (*G.Node, error) { return G.HadamardProd(omy, logOmOut) })

	retVal = m.do(func() (*G.Node, error) { return G.Add(fst, snd) })
	retVal = m.do(func() (*G.Node, error) { return G.Neg(retVal) })
	return m.do(func() (*G.Node, error) { return G.Mean(retVal) })
}

// mse is the mean squared error of output against target.
func (m *maebe) mse(output, target *G.Node) *G.Node {
	diff := m.do(func() (*G.Node, error) { return G.Sub(output, target) })
	diff = m.do(func() (*G.Node, error) { return G.Square(diff) })
	return m.do(func() (*G.Node, error) { return G.Mean(diff) })
}

// average is the mean of a non empty list of scalar nodes.
func (m *maebe) average(xs G.Nodes) *G.Node {
	if m.err != nil {
		return nil
	}
	sum := xs[0]
	for _, x := range xs[1:] {
		x := x
		prev := sum
		sum = m.do(func() (*G.Node, error) { return G.Add(prev, x) })
	}
	if len(xs) == 1 {
		return sum
	}
	n := scalar(float64(len(xs)))
	return m.do(func() (*G.Node, error) { return G.HadamardDiv(sum, n) })
}

func scalar(v float64) *G.Node {
	switch Float {
	case G.Float64:
		return G.NewConstant(v)
	}
	return G.NewConstant(float32(v))
}
