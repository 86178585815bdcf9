package gsn

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gorgonia/walkback/noise"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// GSN is a generalized stochastic network: a stack of hidden layers over a visible layer, trained
// to reconstruct its input from progressively corrupted versions of it.
//
// The parameters are shared by every walkback step of the chain. They are owned by the GSN; a
// solver only ever updates their values.
type GSN struct {
	Config

	g      *G.ExprGraph
	stream *noise.Stream

	x        *G.Node // the uncorrupted input batch
	weights  G.Nodes // weights[i] connects layer i to layer i+1
	decoder  *G.Node // visible decoder when weights are not tied
	biases   G.Nodes // one per layer, visible layer first
	policies []noise.Policy
	samples  noise.Slots

	recons     G.Nodes
	reconVals  []G.Value // reconstructions of the last run
	costNode   *G.Node
	cost       G.Value // cost of the last run
	learnables G.Nodes
}

// New returns a new, uninitialized *GSN.
func New(conf Config) *GSN {
	return &GSN{Config: conf}
}

// Init builds the graph of the chain and, unless the GSN is forward only, its gradients.
// The weights and all of the noise are drawn from a stream seeded with conf.Seed.
func (d *GSN) Init() error {
	if err := d.Validate(); err != nil {
		return err
	}
	d.reset()
	d.g = G.NewGraph()
	d.stream = noise.NewStream(d.Seed)
	d.initParams()

	used, err := d.fwd()
	if err != nil {
		return err
	}
	return d.bwd(used)
}

func (d *GSN) initParams() {
	widths := d.widths()
	glorot := func(dt tensor.Dtype, s ...int) interface{} { return d.stream.GlorotU(dt, 1, s[0], s[1]) }
	for i := 0; i < d.Layers; i++ {
		w := G.NewMatrix(d.g, Float, G.WithShape(widths[i], widths[i+1]), G.WithName(fmt.Sprintf("W_%d", i)), G.WithInit(glorot))
		d.weights = append(d.weights, w)
	}
	if !d.TiedWeights {
		d.decoder = G.NewMatrix(d.g, Float, G.WithShape(widths[1], widths[0]), G.WithName("W_dec"), G.WithInit(glorot))
	}
	for i, width := range widths {
		b := G.NewMatrix(d.g, Float, G.WithShape(1, width), G.WithName(fmt.Sprintf("b_%d", i)), G.WithInit(G.Zeroes()))
		d.biases = append(d.biases, b)
	}

	nc := d.noise()
	for i := range widths {
		name := "X"
		if i > 0 {
			name = fmt.Sprintf("H%d", i)
		}
		d.policies = append(d.policies, noise.Resolve(noise.RoleOf(i), nc, name))
	}
}

func (d *GSN) bwd(used paramSet) error {
	for _, n := range d.Model() {
		if used.has(n) {
			d.learnables = append(d.learnables, n)
		}
	}
	if d.FwdOnly {
		return nil
	}
	if _, err := G.Grad(d.costNode, d.learnables...); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Model returns every parameter of the GSN, in a stable order: the weights from the visible
// layer up, the untied decoder if any, then the biases from the visible layer up.
func (d *GSN) Model() G.Nodes {
	retVal := make(G.Nodes, 0, len(d.weights)+len(d.biases)+1)
	retVal = append(retVal, d.weights...)
	if d.decoder != nil {
		retVal = append(retVal, d.decoder)
	}
	return append(retVal, d.biases...)
}

// Learnables returns the parameters the cost depends on. Those are the ones a solver updates.
// Layers that are too deep for the number of walkbacks never reach a reconstruction.
func (d *GSN) Learnables() G.Nodes { return d.learnables }

// Graph returns the expression graph of the GSN.
func (d *GSN) Graph() *G.ExprGraph { return d.g }

// CostNode is the scalar cost, a function of the parameters and of the bound batch.
func (d *GSN) CostNode() *G.Node { return d.costNode }

// Let binds a batch to the input of the chain and draws all of the noise for the next run.
func (d *GSN) Let(batch *tensor.Dense) error {
	if !batch.Shape().Eq(d.x.Shape()) {
		return errors.Errorf("expected a batch of shape %v, got %v", d.x.Shape(), batch.Shape())
	}
	if err := G.Let(d.x, batch); err != nil {
		return errors.WithStack(err)
	}
	for i, p := range d.policies {
		if err := p.Draw(d.stream); err != nil {
			return errors.WithMessagef(err, "layer %d", i)
		}
	}
	return d.samples.Draw(d.stream)
}

// Cost returns the cost computed by the last run.
func (d *GSN) Cost() float32 {
	if d.cost == nil {
		return 0
	}
	switch c := d.cost.Data().(type) {
	case float32:
		return c
	case float64:
		return float32(c)
	}
	return 0
}

// Reconstructions returns copies of the reconstructions computed by the last run, one per
// walkback, each shaped [batch, input].
func (d *GSN) Reconstructions() []*tensor.Dense {
	retVal := make([]*tensor.Dense, 0, len(d.reconVals))
	for _, v := range d.reconVals {
		if v == nil {
			return nil
		}
		retVal = append(retVal, v.(tensor.Tensor).Clone().(*tensor.Dense))
	}
	return retVal
}

// SetVisibleBias initializes the visible bias to the logit of the per feature mean of the data.
func (d *GSN) SetVisibleBias(mean []float32) error {
	if len(mean) != d.InputSize {
		return errors.Errorf("expected %d means, got %d", d.InputSize, len(mean))
	}
	const eps = 1e-4
	backing := make([]float32, len(mean))
	for i, p := range mean {
		p = math32.Max(eps, math32.Min(1-eps, p))
		backing[i] = math32.Log(p / (1 - p))
	}
	b := tensor.New(tensor.WithShape(1, d.InputSize), tensor.WithBacking(backing))
	return errors.WithStack(G.Let(d.biases[0], b))
}

// Clone returns a GSN with the same config and parameter values.
func (d *GSN) Clone() (*GSN, error) {
	d2 := New(d.Config)
	if err := d2.Init(); err != nil {
		return nil, err
	}
	if err := d2.copyParams(d); err != nil {
		return nil, err
	}
	return d2, nil
}

func (d *GSN) copyParams(from *GSN) error {
	model := from.Model()
	model2 := d.Model()
	if len(model) != len(model2) {
		return errors.Errorf("parameter count mismatch: %d vs %d", len(model), len(model2))
	}
	for i, n := range model {
		v := n.Value().(tensor.Tensor).Clone().(*tensor.Dense)
		if err := G.Let(model2[i], v); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (d *GSN) reset() {
	d.g = nil
	d.x = nil
	d.weights = nil
	d.decoder = nil
	d.biases = nil
	d.policies = nil
	d.samples = noise.Slots{}
	d.recons = nil
	d.reconVals = nil
	d.costNode = nil
	d.cost = nil
	d.learnables = nil
}

func (d *GSN) GobEncode() (retVal []byte, err error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, n := range d.Model() {
		v := n.Value()
		if err = enc.Encode(&v); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return buf.Bytes(), nil
}

func (d *GSN) GobDecode(p []byte) error {
	if err := d.Init(); err != nil {
		return err
	}

	buf := bytes.NewBuffer(p)
	dec := gob.NewDecoder(buf)
	for _, n := range d.Model() {
		var v G.Value
		if err := dec.Decode(&v); err != nil {
			return errors.WithStack(err)
		}
		if err := G.Let(n, v); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
