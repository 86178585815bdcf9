package noise

import "math"

// Schedule is a noise magnitude that is annealed after every walkback step.
type Schedule struct {
	Base      float64 // magnitude at the first walkback step
	Annealing float64 // multiplier applied after each step, in [0, 1]. 1 disables annealing.
}

// At returns the magnitude at the 0-based walkback step.
func (s Schedule) At(step int) float64 {
	if step <= 0 {
		return s.Base
	}
	return s.Base * math.Pow(s.Annealing, float64(step))
}

// Steps returns the magnitudes of the first n steps.
func (s Schedule) Steps(n int) []float64 {
	retVal := make([]float64, n)
	for i := range retVal {
		retVal[i] = s.At(i)
	}
	return retVal
}
