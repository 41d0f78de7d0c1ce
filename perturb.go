package qoptim

import "math/rand/v2"

// StateKind decides how the annealer perturbs a state.
type StateKind int

const (
	// StateNumeric states get small additive deltas.
	StateNumeric StateKind = iota
	// StateBinary states get bit flips.
	StateBinary
	// StateHeterogeneous states are only ever rearranged, never altered.
	StateHeterogeneous
)

func (k StateKind) String() string {
	switch k {
	case StateNumeric:
		return "numeric"
	case StateBinary:
		return "binary"
	default:
		return "heterogeneous"
	}
}

/*
MoveFunc proposes a new state from the current one. It must return a fresh
slice and leave current untouched.
*/
type MoveFunc[E Element] func(rng *rand.Rand, current []E) []E

type moveSet[E Element] struct {
	kind     StateKind
	neighbor MoveFunc[E]
	tunnel   MoveFunc[E]
}

const (
	neighborFraction = 0.3
	tunnelFraction   = 0.5
	tunnelFlipRate   = 0.2
	neighborDelta    = 0.1
	tunnelDelta      = 1.0
)

// defaultMoves picks the move set for E once, at construction.
func defaultMoves[E Element](scale float64) moveSet[E] {
	var moves moveSet[E]

	switch m := any(&moves).(type) {
	case *moveSet[float64]:
		*m = moveSet[float64]{
			kind:     StateNumeric,
			neighbor: numericMove(neighborFraction, neighborDelta*scale),
			tunnel:   numericMove(tunnelFraction, tunnelDelta*scale),
		}
	case *moveSet[bool]:
		*m = moveSet[bool]{
			kind:     StateBinary,
			neighbor: flipOne,
			tunnel:   flipMany(tunnelFlipRate),
		}
	case *moveSet[int]:
		*m = moveSet[int]{
			kind:     StateHeterogeneous,
			neighbor: swapPair[int],
			tunnel:   shuffleSegment[int],
		}
	}

	return moves
}

// numericMove touches roughly fraction of the elements with a uniform delta.
func numericMove(fraction, delta float64) MoveFunc[float64] {
	return func(rng *rand.Rand, current []float64) []float64 {
		next := clone(current)
		touched := false
		for i := range next {
			if rng.Float64() < fraction {
				next[i] += (rng.Float64()*2 - 1) * delta
				touched = true
			}
		}
		if !touched && len(next) > 0 {
			next[rng.IntN(len(next))] += (rng.Float64()*2 - 1) * delta
		}
		return next
	}
}

func flipOne(rng *rand.Rand, current []bool) []bool {
	next := clone(current)
	if len(next) > 0 {
		i := rng.IntN(len(next))
		next[i] = !next[i]
	}
	return next
}

func flipMany(rate float64) MoveFunc[bool] {
	return func(rng *rand.Rand, current []bool) []bool {
		next := clone(current)
		flipped := false
		for i := range next {
			if rng.Float64() < rate {
				next[i] = !next[i]
				flipped = true
			}
		}
		if !flipped && len(next) > 0 {
			i := rng.IntN(len(next))
			next[i] = !next[i]
		}
		return next
	}
}

func swapPair[E Element](rng *rand.Rand, current []E) []E {
	next := clone(current)
	if len(next) < 2 {
		return next
	}
	i := rng.IntN(len(next))
	j := rng.IntN(len(next) - 1)
	if j >= i {
		j++
	}
	next[i], next[j] = next[j], next[i]
	return next
}

// shuffleSegment permutes a random contiguous run of at least two elements.
func shuffleSegment[E Element](rng *rand.Rand, current []E) []E {
	next := clone(current)
	n := len(next)
	if n < 2 {
		return next
	}
	start := rng.IntN(n - 1)
	end := start + 2 + rng.IntN(n-start-1)
	segment := next[start:end]
	rng.Shuffle(len(segment), func(i, j int) {
		segment[i], segment[j] = segment[j], segment[i]
	})
	return next
}
