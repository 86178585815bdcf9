package gsn

import (
	"encoding/json"
	"io"

	"github.com/gorgonia/walkback/noise"
	"github.com/pkg/errors"
)

// Config configures a generalized stochastic network.
type Config struct {
	Layers     int `json:"layers"`      // number of hidden layers
	Walkbacks  int `json:"walkbacks"`   // number of full update cycles of the chain
	InputSize  int `json:"input_size"`  // width of the visible layer
	HiddenSize int `json:"hidden_size"` // width of every hidden layer
	BatchSize  int `json:"batch_size"`

	VisibleActivation string `json:"visible_activation"`
	HiddenActivation  string `json:"hidden_activation"`
	InputSampling     bool   `json:"input_sampling"` // sample the visible layer between walkbacks
	TiedWeights       bool   `json:"tied_weights"`   // reconstruct the visible layer with the transposed encoder weights

	NoiseAnnealing      float64 `json:"noise_annealing"` // multiplies noise magnitudes after every walkback
	AddNoise            bool    `json:"add_noise"`
	NoiselessH1         bool    `json:"noiseless_h1"`
	HiddenAddNoiseSigma float64 `json:"hidden_add_noise_sigma"`
	InputSaltAndPepper  float64 `json:"input_salt_and_pepper"`

	CostFunction string `json:"cost_function"`
	Seed         uint64 `json:"seed"`

	IsImage bool `json:"is_image"` // rendering hint
	VisInit bool `json:"vis_init"` // initialize the visible bias from the data mean

	FwdOnly bool `json:"-"` // is this a fwd only graph?
}

// DefaultConfig returns the defaults of a GSN over MNIST sized inputs.
func DefaultConfig() Config {
	return Config{
		Layers:     3,
		Walkbacks:  5,
		InputSize:  28 * 28,
		HiddenSize: 1500,
		BatchSize:  100,

		VisibleActivation: "sigmoid",
		HiddenActivation:  "tanh",
		InputSampling:     true,
		TiedWeights:       true,

		NoiseAnnealing:      1.0, // no noise schedule by default
		AddNoise:            true,
		NoiselessH1:         true,
		HiddenAddNoiseSigma: 2,
		InputSaltAndPepper:  0.4,

		CostFunction: "binary_crossentropy",
		Seed:         1,
		IsImage:      true,
	}
}

// LoadConfig decodes a JSON configuration on top of base. Keys that are not present keep the
// value they have in base.
func LoadConfig(r io.Reader, base Config) (Config, error) {
	conf := base
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&conf); err != nil {
		return base, errors.Wrap(err, "unable to decode GSN config")
	}
	return conf, nil
}

func (conf Config) IsValid() bool { return conf.Validate() == nil }

// Validate returns the first problem found with the config.
func (conf Config) Validate() error {
	switch {
	case conf.Layers < 1:
		return errors.Errorf("layers must be at least 1, got %d", conf.Layers)
	case conf.Walkbacks < 1:
		return errors.Errorf("walkbacks must be at least 1, got %d", conf.Walkbacks)
	case conf.InputSize < 1 || conf.HiddenSize < 1:
		return errors.Errorf("layer sizes must be positive, got input %d hidden %d", conf.InputSize, conf.HiddenSize)
	case conf.BatchSize < 1:
		return errors.Errorf("batch size must be at least 1, got %d", conf.BatchSize)
	case conf.NoiseAnnealing < 0 || conf.NoiseAnnealing > 1:
		return errors.Errorf("noise annealing must be within [0, 1], got %v", conf.NoiseAnnealing)
	case conf.InputSaltAndPepper < 0 || conf.InputSaltAndPepper > 1:
		return errors.Errorf("input salt and pepper must be within [0, 1], got %v", conf.InputSaltAndPepper)
	case conf.HiddenAddNoiseSigma < 0:
		return errors.Errorf("hidden noise sigma must not be negative, got %v", conf.HiddenAddNoiseSigma)
	}
	if _, ok := activations[conf.VisibleActivation]; !ok {
		return errors.Errorf("unknown visible activation %q", conf.VisibleActivation)
	}
	if _, ok := activations[conf.HiddenActivation]; !ok {
		return errors.Errorf("unknown hidden activation %q", conf.HiddenActivation)
	}
	if _, ok := costs[conf.CostFunction]; !ok {
		return errors.Errorf("unknown cost function %q", conf.CostFunction)
	}
	return nil
}

func (conf Config) noise() noise.Config {
	return noise.Config{
		AddNoise:           conf.AddNoise,
		NoiselessH1:        conf.NoiselessH1,
		InputSaltAndPepper: conf.InputSaltAndPepper,
		HiddenSigma:        conf.HiddenAddNoiseSigma,
		Annealing:          conf.NoiseAnnealing,
	}
}

// widths returns the width of every layer of the chain, visible layer first.
func (conf Config) widths() []int {
	retVal := make([]int, conf.Layers+1)
	retVal[0] = conf.InputSize
	for i := 1; i < len(retVal); i++ {
		retVal[i] = conf.HiddenSize
	}
	return retVal
}
