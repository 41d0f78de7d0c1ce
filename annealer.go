package qoptim

import (
	"math"
	"math/rand/v2"

	"github.com/theapemachine/errnie"
)

/*
Annealer is simulated annealing with an extra tunneling move. Every iteration
proposes a neighbor and accepts it by the Metropolis rule; independently, with
the tunneling probability, it tries a much larger jump that is only taken when
it lowers the current cost. Temperature cools geometrically and the run always
lasts exactly the configured number of iterations.

The annealer knows nothing about the problem behind the cost function. How a
state is perturbed follows from its element type, fixed once in NewAnnealer:
[]float64 is numeric, []bool is binary and []int is heterogeneous.
*/
type Annealer[E Element] struct {
	cost        func([]E) float64
	initial     []E
	temperature float64
	coolingRate float64
	iterations  int
	tunneling   float64
	moves       moveSet[E]
	rng         *rand.Rand
}

func NewAnnealer[E Element](
	cost func([]E) float64,
	initial []E,
	temperature, coolingRate float64,
	iterations int,
	tunnelingProbability float64,
	opts ...Option,
) (*Annealer[E], error) {
	switch {
	case cost == nil:
		return nil, invalidParam("annealer needs a cost function")
	case len(initial) == 0:
		return nil, invalidParam("annealer needs a non-empty initial state")
	case temperature <= 0:
		return nil, invalidParam("temperature must be positive, got %g", temperature)
	case coolingRate <= 0 || coolingRate > 1:
		return nil, invalidParam("cooling rate must be in (0,1], got %g", coolingRate)
	case iterations < 1:
		return nil, invalidParam("iterations must be positive, got %d", iterations)
	case tunnelingProbability < 0 || tunnelingProbability > 1:
		return nil, invalidParam("tunneling probability must be in [0,1], got %g", tunnelingProbability)
	}

	o := newOptions(opts)

	return &Annealer[E]{
		cost:        cost,
		initial:     clone(initial),
		temperature: temperature,
		coolingRate: coolingRate,
		iterations:  iterations,
		tunneling:   tunnelingProbability,
		moves:       defaultMoves[E](o.scale),
		rng:         o.rng,
	}, nil
}

// Kind reports how states are perturbed.
func (a *Annealer[E]) Kind() StateKind {
	return a.moves.kind
}

/*
WithMoves replaces the default neighbor and tunneling moves, for callers whose
state has structure the element type does not reveal. A nil argument keeps the
default for that move.
*/
func (a *Annealer[E]) WithMoves(neighbor, tunnel MoveFunc[E]) *Annealer[E] {
	if neighbor != nil {
		a.moves.neighbor = neighbor
	}
	if tunnel != nil {
		a.moves.tunnel = tunnel
	}
	return a
}

func (a *Annealer[E]) Run() *OptimizationRun[E] {
	current := clone(a.initial)
	currentCost := a.cost(current)

	run := &OptimizationRun[E]{
		BestState: clone(current),
		BestCost:  currentCost,
		History:   make([]float64, 0, a.iterations),
	}

	temperature := a.temperature

	for range a.iterations {
		candidate := a.moves.neighbor(a.rng, current)
		candidateCost := a.cost(candidate)

		if a.accept(candidateCost-currentCost, temperature) {
			current, currentCost = candidate, candidateCost
			run.Accepted++
		}

		if a.tunneling > 0 && a.rng.Float64() < a.tunneling {
			jump := a.moves.tunnel(a.rng, current)
			if jumpCost := a.cost(jump); jumpCost < currentCost {
				current, currentCost = jump, jumpCost
				run.TunnelAccepted++
			}
		}

		if currentCost < run.BestCost {
			run.BestState = clone(current)
			run.BestCost = currentCost
		}

		temperature *= a.coolingRate
		run.History = append(run.History, currentCost)
		run.Iterations++
	}

	run.CurrentState = current

	errnie.Debug(
		"Annealer.Run - %s state, %d iterations, best %g, accepted %d, tunneled %d",
		a.moves.kind, run.Iterations, run.BestCost, run.Accepted, run.TunnelAccepted,
	)

	return run
}

// accept is the Metropolis criterion.
func (a *Annealer[E]) accept(delta, temperature float64) bool {
	if delta <= 0 {
		return true
	}
	if temperature <= 0 {
		return false
	}
	return a.rng.Float64() < math.Exp(-delta/temperature)
}
