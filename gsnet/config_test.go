package gsn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	if !DefaultConfig().IsValid() {
		t.Errorf("Expected Default Config to be correct: %v", DefaultConfig().Validate())
	}
	if !DAEConfig().IsValid() {
		t.Errorf("Expected DAE Config to be correct: %v", DAEConfig().Validate())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no layers", func(c *Config) { c.Layers = 0 }},
		{"no walkbacks", func(c *Config) { c.Walkbacks = 0 }},
		{"no batch", func(c *Config) { c.BatchSize = 0 }},
		{"annealing above 1", func(c *Config) { c.NoiseAnnealing = 1.5 }},
		{"negative annealing", func(c *Config) { c.NoiseAnnealing = -0.1 }},
		{"bad salt and pepper", func(c *Config) { c.InputSaltAndPepper = 2 }},
		{"negative sigma", func(c *Config) { c.HiddenAddNoiseSigma = -1 }},
		{"unknown activation", func(c *Config) { c.HiddenActivation = "swish" }},
		{"unknown cost", func(c *Config) { c.CostFunction = "hinge" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := DefaultConfig()
			tt.modify(&conf)
			assert.Error(t, conf.Validate())
			assert.False(t, conf.IsValid())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	conf, err := LoadConfig(strings.NewReader(`{"walkbacks": 2, "noise_annealing": 0.5, "add_noise": false}`), DefaultConfig())
	require.NoError(t, err)

	want := DefaultConfig()
	want.Walkbacks = 2
	want.NoiseAnnealing = 0.5
	want.AddNoise = false
	assert.Equal(t, want, conf)

	_, err = LoadConfig(strings.NewReader(`{"walkback": 2}`), DefaultConfig())
	assert.Error(t, err, "unknown keys should be rejected")
}

func TestDAEForcesOneLayer(t *testing.T) {
	for _, layers := range []int{0, 1, 2, 7} {
		conf := smallConf()
		conf.Layers = layers
		d, used := NewDAE(conf)
		assert.Equal(t, 1, used.Layers)
		assert.Equal(t, 1, d.Layers)
		require.NoError(t, d.Init())
		assert.Len(t, d.weights, 1)
		assert.Len(t, d.biases, 2)
	}
}
