package qoptim

import "math/rand/v2"

// Element is the set of state element types the optimizers work on.
type Element interface {
	float64 | bool | int
}

/*
OptimizationRun is the record of one optimizer run. It is created by Run and
owned by the caller afterwards; nothing about it is kept by the optimizer.

For the genetic algorithm BestCost carries the best fitness, History the best
fitness of each generation and Accepted the number of crossovers.
*/
type OptimizationRun[E Element] struct {
	CurrentState []E
	BestState    []E
	BestCost     float64
	History      []float64

	Iterations     int
	Accepted       int
	TunnelAccepted int
}

// Option tunes an optimizer at construction time.
type Option func(*options)

type options struct {
	rng   *rand.Rand
	scale float64
}

func newOptions(opts []Option) *options {
	o := &options{scale: 1}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = NewConfig().newRand()
	}
	return o
}

// WithRand makes the optimizer draw from rng, which it then owns.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithStepScale scales the numeric perturbation ranges of the annealer.
func WithStepScale(scale float64) Option {
	return func(o *options) {
		if scale > 0 {
			o.scale = scale
		}
	}
}

func clone[E any](in []E) []E {
	out := make([]E, len(in))
	copy(out, in)
	return out
}
