package walkback

import (
	"encoding/json"
	"io"

	gsn "github.com/gorgonia/walkback/gsnet"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Config is the configuration of a training run.
type Config struct {
	Name    string       `json:"name"`
	Model   gsn.Config   `json:"model"`
	Solver  SolverConfig `json:"solver"`
	Epochs  int          `json:"epochs"`
	Shuffle bool         `json:"shuffle"` // shuffle the training rows every epoch

	// Previews is the number of TEST rows whose reconstruction chains are sent to the
	// OutputEncoder after every epoch. Height and Width are the image shape of a row.
	Previews      int  `json:"previews"`
	TracePreviews bool `json:"trace_previews"` // log the execution of preview chains that diverge
	Height, Width int  `json:"-"`
}

// DefaultConfig is the configuration of the original MNIST experiment.
func DefaultConfig() Config {
	return Config{
		Name:     "MNIST",
		Model:    gsn.DefaultConfig(),
		Solver:   DefaultSolverConfig(),
		Epochs:   500,
		Shuffle:  true,
		Previews: 10,
		Height:   28,
		Width:    28,
	}
}

// DefaultDAEConfig is DefaultConfig with the model defaults of a denoising autoencoder.
func DefaultDAEConfig() Config {
	conf := DefaultConfig()
	conf.Name = "MNIST DAE"
	conf.Model = gsn.DAEConfig()
	return conf
}

// IsValid reports whether the config can be used to train.
func (conf Config) IsValid() bool { return conf.Validate() == nil }

func (conf Config) Validate() error {
	if err := conf.Model.Validate(); err != nil {
		return errors.WithMessage(err, "model")
	}
	if err := conf.Solver.Validate(); err != nil {
		return errors.WithMessage(err, "solver")
	}
	if conf.Epochs < 0 {
		return errors.Errorf("epochs must not be negative, got %d", conf.Epochs)
	}
	if conf.Previews > 0 && conf.Model.IsImage && conf.Height*conf.Width != conf.Model.InputSize {
		return errors.Errorf("cannot view %d inputs as a %dx%d image", conf.Model.InputSize, conf.Height, conf.Width)
	}
	return nil
}

// LoadConfig reads a JSON config over base. Keys that are absent keep the value they have in base.
func LoadConfig(r io.Reader, base Config) (Config, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&base); err != nil {
		return base, errors.Wrap(err, "unable to decode config")
	}
	return base, base.Validate()
}

// SolverConfig names a gorgonia solver and its hyperparameters.
type SolverConfig struct {
	Name      string  `json:"name"` // sgd, momentum, rmsprop, adam or adagrad
	LearnRate float64 `json:"learn_rate"`
	Momentum  float64 `json:"momentum"`
	L2        float64 `json:"l2"`
	Clip      float64 `json:"clip"`
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Name:      "momentum",
		LearnRate: 0.25,
		Momentum:  0.5,
	}
}

func (conf SolverConfig) Validate() error {
	if conf.LearnRate <= 0 {
		return errors.Errorf("learn rate must be positive, got %v", conf.LearnRate)
	}
	if conf.L2 < 0 || conf.Clip < 0 {
		return errors.Errorf("l2 (%v) and clip (%v) must not be negative", conf.L2, conf.Clip)
	}
	switch conf.Name {
	case "sgd", "momentum", "rmsprop", "adam", "adagrad":
		return nil
	}
	return errors.Errorf("unknown solver %q", conf.Name)
}

// Solver creates the solver. batchSize scales the gradients.
func (conf SolverConfig) Solver(batchSize int) (G.Solver, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	opts := []G.SolverOpt{G.WithLearnRate(conf.LearnRate), G.WithBatchSize(float64(batchSize))}
	if conf.L2 > 0 {
		opts = append(opts, G.WithL2Reg(conf.L2))
	}
	if conf.Clip > 0 {
		opts = append(opts, G.WithClip(conf.Clip))
	}

	switch conf.Name {
	case "sgd":
		return G.NewVanillaSolver(opts...), nil
	case "momentum":
		return G.NewMomentum(append(opts, G.WithMomentum(conf.Momentum))...), nil
	case "rmsprop":
		return G.NewRMSPropSolver(opts...), nil
	case "adam":
		return G.NewAdamSolver(opts...), nil
	default:
		return G.NewAdaGradSolver(opts...), nil
	}
}

// Snapshot is the reconstruction chain of one input row, as seen after an epoch.
type Snapshot interface {
	Name() string
	Epoch() int
	Row() int
	Shape() (h, w int)
	Original() []float32
	Corrupted() []float32         // the corrupted original, nil when the visible layer is not corrupted
	Reconstructions() [][]float32 // one per walkback
}

// OutputEncoder encodes snapshots as whatever.
//
// An example OutputEncoder is the gif Encoder.
type OutputEncoder interface {
	Encode(s Snapshot) error
	Flush() error
}

// Reconstructor is anything that can run a batch through a walkback chain.
type Reconstructor interface {
	Reconstruct(batch *tensor.Dense) ([]*tensor.Dense, error)
	io.Closer
}

// ExecLogger is anything that can return the execution log.
type ExecLogger interface {
	ExecLog() string
}
