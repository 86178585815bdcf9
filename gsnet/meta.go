package gsn

import (
	"bytes"
	"log"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Batches supplies the batches of one pass over a dataset.
type Batches interface {
	Len() int
	Batch(i int) (*tensor.Dense, error)
}

// Train is a basic trainer. It runs one pass of solver over the batches and returns the mean cost.
func Train(d *GSN, solver G.Solver, batches Batches) (float32, error) {
	if d.FwdOnly {
		return 0, errors.New("cannot train a forward only GSN")
	}
	m := G.NewTapeMachine(d.g, G.BindDualValues(d.Learnables()...))
	defer m.Close()
	model := G.NodesToValueGrads(d.Learnables())

	var cost float32
	for bat := 0; bat < batches.Len(); bat++ {
		x, err := batches.Batch(bat)
		if err != nil {
			return 0, err
		}
		if err = d.Let(x); err != nil {
			return 0, err
		}
		if err = m.RunAll(); err != nil {
			return 0, errors.WithStack(err)
		}
		cost += d.Cost()
		if err = solver.Step(model); err != nil {
			return 0, errors.WithStack(err)
		}
		m.Reset()
	}
	if batches.Len() == 0 {
		return 0, nil
	}
	return cost / float32(batches.Len()), nil
}

// Evaluate returns the mean cost of the GSN over the batches, without updating it.
func Evaluate(d *GSN, batches Batches) (float32, error) {
	m := G.NewTapeMachine(d.g)
	defer m.Close()

	var cost float32
	for bat := 0; bat < batches.Len(); bat++ {
		x, err := batches.Batch(bat)
		if err != nil {
			return 0, err
		}
		if err = d.Let(x); err != nil {
			return 0, err
		}
		if err = m.RunAll(); err != nil {
			return 0, errors.WithStack(err)
		}
		cost += d.Cost()
		m.Reset()
	}
	if batches.Len() == 0 {
		return 0, nil
	}
	return cost / float32(batches.Len()), nil
}

// Reconstructor holds a forward only copy of a *GSN and a VM, so that a VM need not be created
// every time a batch is reconstructed.
type Reconstructor struct {
	d *GSN
	m G.VM

	buf *bytes.Buffer
}

// Reconstruct takes a trained *GSN and creates a forward only copy of it that reconstructs
// batches of batchSize rows.
func Reconstruct(d *GSN, batchSize int, toLog bool) (*Reconstructor, error) {
	conf := d.Config
	conf.FwdOnly = true
	conf.BatchSize = batchSize
	retVal := &Reconstructor{d: New(conf)}
	if err := retVal.d.Init(); err != nil {
		return nil, err
	}
	if err := retVal.d.copyParams(d); err != nil {
		return nil, err
	}

	retVal.buf = new(bytes.Buffer)
	if toLog {
		logger := log.New(retVal.buf, "", 0)
		retVal.m = G.NewTapeMachine(retVal.d.g,
			G.WithLogger(logger),
			G.WithWatchlist(),
			G.TraceExec(),
			G.WithValueFmt("%+1.1v"),
			G.WithNaNWatch(),
		)
	} else {
		retVal.m = G.NewTapeMachine(retVal.d.g)
	}
	return retVal, nil
}

// GSN returns the forward only copy.
func (r *Reconstructor) GSN() *GSN { return r.d }

// Reconstruct runs the chain on a batch and returns one reconstruction per walkback.
func (r *Reconstructor) Reconstruct(batch *tensor.Dense) ([]*tensor.Dense, error) {
	r.buf.Reset()
	r.m.Reset()
	if err := r.d.Let(batch); err != nil {
		return nil, err
	}
	if err := r.m.RunAll(); err != nil {
		return nil, errors.WithStack(err)
	}
	return r.d.Reconstructions(), nil
}

// Cost is the cost of the last reconstruction.
func (r *Reconstructor) Cost() float32 { return r.d.Cost() }

// ExecLog returns the execution log. If Reconstruct was called with toLog = false, then it will return an empty string
func (r *Reconstructor) ExecLog() string { return r.buf.String() }

// Close implements a closer, because well, a gorgonia VM is a resource.
func (r *Reconstructor) Close() error { return r.m.Close() }
