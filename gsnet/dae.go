package gsn

// DAEConfig returns the defaults of a denoising autoencoder: a GSN with a single hidden layer
// and a single walkback.
func DAEConfig() Config {
	conf := DefaultConfig()
	conf.Layers = 1
	conf.Walkbacks = 1
	return conf
}

// NewDAE returns a new, uninitialized denoising autoencoder. A DAE always has exactly one
// hidden layer: whatever conf.Layers holds is overridden, and the config actually used is
// returned so that callers can see the override.
func NewDAE(conf Config) (*GSN, Config) {
	conf.Layers = 1
	return New(conf), conf
}
