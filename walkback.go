// Package walkback trains generalized stochastic networks and denoising autoencoders with
// walkback on indexed datasets such as MNIST.
package walkback

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorgonia/walkback/dataset"
	gsn "github.com/gorgonia/walkback/gsnet"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/vecf32"
)

// Trainer is the top level structure and the entry point of the API.
// It ties a dataset, a GSN and a solver together, and records how the training went.
type Trainer struct {
	Statistics

	conf    Config
	data    *dataset.Dataset
	model   *gsn.GSN
	solver  G.Solver
	r       *rand.Rand
	train   *batches
	test    *batches // nil when the dataset has no TEST split
	preview preview
	outEnc  OutputEncoder

	best     *gsn.GSN // copy of the model at its lowest cost so far
	bestCost float32

	epoch  int
	buf    bytes.Buffer
	logger *log.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogOutput copies the training log to w. The log is always kept in memory, see Log.
func WithLogOutput(w io.Writer) Option {
	return func(t *Trainer) { t.logger.SetOutput(io.MultiWriter(&t.buf, w)) }
}

// WithOutputEncoder sends the reconstruction chains of the preview rows to enc after every epoch.
func WithOutputEncoder(enc OutputEncoder) Option {
	return func(t *Trainer) { t.outEnc = enc }
}

// New creates a Trainer for a GSN as described by conf.Model.
func New(data *dataset.Dataset, conf Config, opts ...Option) (*Trainer, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return newTrainer(data, conf, gsn.New(conf.Model), opts)
}

// NewDAE creates a Trainer for a denoising autoencoder. A DAE always has exactly one hidden
// layer, whatever conf.Model.Layers says; Config reports the configuration actually used.
func NewDAE(data *dataset.Dataset, conf Config, opts ...Option) (*Trainer, error) {
	model, used := gsn.NewDAE(conf.Model)
	requested := conf.Model.Layers
	conf.Model = used
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	t, err := newTrainer(data, conf, model, opts)
	if err != nil {
		return nil, err
	}
	if requested != used.Layers {
		t.logger.Printf("DAE: %d layers requested, using %d", requested, used.Layers)
	}
	return t, nil
}

func newTrainer(data *dataset.Dataset, conf Config, model *gsn.GSN, opts []Option) (*Trainer, error) {
	train, ok := data.Split(dataset.Train)
	if !ok {
		return nil, errors.Errorf("dataset %q has no %v split", data.Name(), dataset.Train)
	}
	if train.Dim() != conf.Model.InputSize {
		return nil, errors.Errorf("dataset %q has %d features, the model expects %d", data.Name(), train.Dim(), conf.Model.InputSize)
	}
	if err := model.Init(); err != nil {
		return nil, errors.WithMessage(err, "unable to build the model")
	}
	solver, err := conf.Solver.Solver(conf.Model.BatchSize)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		Statistics: makeStatistics(),
		conf:       conf,
		data:       data,
		model:      model,
		solver:     solver,
		r:          rand.New(rand.NewSource(conf.Model.Seed)),
		train:      makeBatches(context.Background(), train, conf.Model.BatchSize),
	}
	t.logger = log.New(&t.buf, "", log.Ltime)
	for _, opt := range opts {
		opt(t)
	}

	if test, ok := data.Split(dataset.Test); ok {
		t.test = makeBatches(context.Background(), test, conf.Model.BatchSize)
	}
	if conf.Model.VisInit {
		mean, err := dataMean(train)
		if err != nil {
			return nil, err
		}
		if err = model.SetVisibleBias(mean); err != nil {
			return nil, err
		}
	}
	if err = t.setupPreview(); err != nil {
		return nil, err
	}
	t.logger.Printf("%v: %d layers of %d, %d walkbacks, %d trainable parameters, %d training batches",
		conf.Name, conf.Model.Layers, conf.Model.HiddenSize, conf.Model.Walkbacks, len(model.Learnables()), t.train.Len())
	return t, nil
}

func (t *Trainer) setupPreview() error {
	t.preview = preview{
		name:   t.conf.Name,
		h:      t.conf.Height,
		w:      t.conf.Width,
		seed:   t.conf.Model.Seed,
		trace:  t.conf.TracePreviews,
		logger: t.logger,
	}
	if t.conf.Model.AddNoise {
		t.preview.corrupt = t.conf.Model.InputSaltAndPepper
	}
	if !t.conf.Model.IsImage || t.conf.Previews <= 0 {
		return nil
	}
	from := dataset.Test
	if t.test == nil {
		from = dataset.Train
	}
	split, _ := t.data.Split(from)
	n := t.conf.Previews
	if n > split.Len() {
		n = split.Len()
	}
	if n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		t.preview.rows = append(t.preview.rows, i)
	}
	orig, err := split.Data(t.preview.rows...)
	if err != nil {
		return err
	}
	t.preview.orig = orig
	return nil
}

// Train trains the model for the given number of epochs. Cancelling ctx stops the training
// between two batches; the epoch in progress is then not recorded.
func (t *Trainer) Train(ctx context.Context, epochs int) error {
	t.train.ctx = ctx
	if t.test != nil {
		t.test.ctx = ctx
	}
	for e := 0; e < epochs; e++ {
		start := time.Now()
		if t.conf.Shuffle {
			t.train.shuffle(t.r)
		}
		cost, err := gsn.Train(t.model, t.solver, t.train)
		if err != nil {
			return errors.WithMessagef(err, "epoch %d", t.epoch)
		}

		var test *float32
		if t.test != nil && t.test.Len() > 0 {
			c, err := gsn.Evaluate(t.model, t.test)
			if err != nil {
				return errors.WithMessagef(err, "epoch %d: test", t.epoch)
			}
			test = &c
		}
		took := time.Since(start)
		t.update(cost, test, took)

		msg := fmt.Sprintf("Epoch %d: train cost %1.5f", t.epoch, cost)
		if test != nil {
			msg += fmt.Sprintf(", test cost %1.5f", *test)
		}
		t.logger.Printf("%s (%v)", msg, took.Round(time.Millisecond))

		score := cost
		if test != nil {
			score = *test
		}
		if err = t.keepBest(score); err != nil {
			return errors.WithMessagef(err, "epoch %d", t.epoch)
		}

		if n, err := t.preview.run(t.model, t.epoch, t.outEnc); err != nil {
			return errors.WithMessagef(err, "epoch %d: preview", t.epoch)
		} else if n < len(t.preview.rows) && t.outEnc != nil {
			t.logger.Printf("\t%d of %d preview chains diverged", len(t.preview.rows)-n, len(t.preview.rows))
		}
		t.epoch++
	}
	return nil
}

// keepBest clones the model when cost is the lowest seen so far. NaN costs are never kept.
func (t *Trainer) keepBest(cost float32) error {
	if math32.IsNaN(cost) || (t.best != nil && cost >= t.bestCost) {
		return nil
	}
	best, err := t.model.Clone()
	if err != nil {
		return errors.WithMessage(err, "unable to keep the best model")
	}
	t.best, t.bestCost = best, cost
	return nil
}

// Best returns a copy of the model as it was after the epoch with the lowest cost, and that
// cost. The TEST cost is used when there is a TEST split, the training cost otherwise.
// Best returns nil before the first epoch.
func (t *Trainer) Best() (*gsn.GSN, float32) { return t.best, t.bestCost }

// Model returns the model being trained.
func (t *Trainer) Model() *gsn.GSN { return t.model }

// Config returns the configuration actually used by the Trainer.
func (t *Trainer) Config() Config { return t.conf }

// Epoch is the number of epochs trained so far.
func (t *Trainer) Epoch() int { return t.epoch }

// Log returns the training log.
func (t *Trainer) Log() string { return t.buf.String() }

// Save the parameters of the model into filename.
func (t *Trainer) Save(filename string) error { return save(filename, t.model) }

// SaveBest saves the parameters of the best model into filename. See Best.
func (t *Trainer) SaveBest(filename string) error {
	if t.best == nil {
		return errors.New("no epoch was trained")
	}
	return save(filename, t.best)
}

func save(filename string, model *gsn.GSN) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return errors.WithStack(enc.Encode(model))
}

// Load the parameters of the model from filename. The file must have been saved from a model
// with the same configuration.
func (t *Trainer) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	model := gsn.New(t.conf.Model)
	dec := gob.NewDecoder(f)
	if err = dec.Decode(model); err != nil {
		return errors.WithStack(err)
	}
	t.model = model
	return nil
}

// dataMean is the per feature mean of the rows of a split.
func dataMean(split *dataset.Split) ([]float32, error) {
	const chunk = 1000
	dim := split.Dim()
	acc := make([]float32, dim)
	indices := make([]int, 0, chunk)
	for start := 0; start < split.Len(); start += chunk {
		indices = indices[:0]
		for i := start; i < start+chunk && i < split.Len(); i++ {
			indices = append(indices, i)
		}
		rows, err := split.Data(indices...)
		if err != nil {
			return nil, err
		}
		data := rows.Data().([]float32)
		for j := range indices {
			vecf32.Add(acc, data[j*dim:(j+1)*dim])
		}
	}
	if split.Len() > 0 {
		vecf32.Scale(acc, 1/float32(split.Len()))
	}
	return acc, nil
}
