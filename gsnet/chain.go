package gsn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// paramSet is the set of parameters a node is differentiable with respect to.
type paramSet map[*G.Node]struct{}

func (s paramSet) has(n *G.Node) bool {
	_, ok := s[n]
	return ok
}

func (s paramSet) with(ns ...*G.Node) paramSet {
	retVal := make(paramSet, len(s)+len(ns))
	for n := range s {
		retVal[n] = struct{}{}
	}
	for _, n := range ns {
		retVal[n] = struct{}{}
	}
	return retVal
}

func (s paramSet) union(o paramSet) paramSet {
	retVal := s.with()
	for n := range o {
		retVal[n] = struct{}{}
	}
	return retVal
}

// state is the current activation of one layer of the chain. A nil node is a layer that has not
// been computed yet, whose activation is zero.
type state struct {
	node *G.Node
	deps paramSet
}

// fwd unrolls the walkback chain into the graph, and sets up the reconstructions and the cost.
//
// Every walkback corrupts the visible layer, updates the odd hidden layers from their
// neighbours, then the even hidden layers from the freshly updated odd ones, and finally
// reconstructs the visible layer from the first hidden layer.
func (d *GSN) fwd() (used paramSet, err error) {
	var m maebe
	d.x = G.NewMatrix(d.g, Float, G.WithShape(d.BatchSize, d.InputSize), G.WithName("X"))

	chain := make([]state, d.Layers+1)
	carry := state{node: d.x}
	for t := 0; t < d.Walkbacks; t++ {
		chain[0] = state{
			node: m.do(func() (*G.Node, error) { return d.policies[0].Corrupt(carry.node, t) }),
			deps: carry.deps,
		}
		for i := 1; i <= d.Layers; i += 2 {
			chain[i] = d.update(&m, chain, i, t)
		}
		for i := 2; i <= d.Layers; i += 2 {
			chain[i] = d.update(&m, chain, i, t)
		}

		recon := d.reconstruct(&m, chain[1])
		if m.err != nil {
			return nil, m.err
		}
		d.recons = append(d.recons, recon.node)
		used = used.union(recon.deps)

		if t == d.Walkbacks-1 {
			break
		}
		if d.InputSampling {
			carry = d.sample(&m, recon, t)
		} else {
			carry = recon
		}
	}

	perStep := make(G.Nodes, len(d.recons))
	cost := costs[d.CostFunction]
	for i, r := range d.recons {
		perStep[i] = cost(&m, r, d.x)
	}
	d.costNode = m.average(perStep)
	if m.err != nil {
		return nil, m.err
	}

	d.reconVals = make([]G.Value, len(d.recons))
	for i, r := range d.recons {
		G.Read(r, &d.reconVals[i])
	}
	G.Read(d.costNode, &d.cost)
	return used, nil
}

// update computes hidden layer i from its neighbours, then corrupts it. A layer whose
// neighbours are both still zero stays zero.
func (d *GSN) update(m *maebe, chain []state, i, t int) state {
	var pre *G.Node
	deps := paramSet{}.with(d.biases[i])
	if below := chain[i-1]; below.node != nil {
		pre = m.affine(pre, below.node, d.weights[i-1], false)
		deps = deps.union(below.deps).with(d.weights[i-1])
	}
	if i < d.Layers {
		if above := chain[i+1]; above.node != nil {
			pre = m.affine(pre, above.node, d.weights[i], true)
			deps = deps.union(above.deps).with(d.weights[i])
		}
	}
	if pre == nil {
		return chain[i]
	}
	pre = m.bias(pre, d.biases[i])

	h := m.activate(d.HiddenActivation, pre)
	h = m.do(func() (*G.Node, error) { return d.policies[i].Corrupt(h, t) })
	return state{node: h, deps: deps}
}

// reconstruct computes the visible layer from the first hidden layer.
func (d *GSN) reconstruct(m *maebe, h1 state) state {
	w, transposed := d.weights[0], true
	if d.decoder != nil {
		w, transposed = d.decoder, false
	}
	pre := m.affine(nil, h1.node, w, transposed)
	pre = m.bias(pre, d.biases[0])
	return state{
		node: m.activate(d.VisibleActivation, pre),
		deps: h1.deps.with(w, d.biases[0]),
	}
}

// sample draws a bernoulli sample of the reconstruction. The sample is not differentiable.
func (d *GSN) sample(m *maebe, recon state, t int) state {
	if m.err != nil {
		return state{}
	}
	u := d.samples.Uniform(recon.node, fmt.Sprintf("U_%d", t))
	return state{node: m.do(func() (*G.Node, error) { return G.Lt(u, recon.node, true) })}
}
