package qoptim

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/stat/distuv"
)

/*
Outcome is one observed basis state. Frequency is the observed share of shots,
Probability the Born-rule probability |a|² the sample was drawn from.
*/
type Outcome struct {
	Bitstring   string
	Index       int
	Count       int
	Frequency   float64
	Probability float64
}

// MeasurementResult holds shot counts per bitstring plus the sampled amplitudes.
type MeasurementResult struct {
	Shots      int
	Counts     map[string]int
	Amplitudes []complex128

	probs   []float64
	indices map[string]int
}

// Outcomes lists every observed bitstring, most frequent first.
func (mr *MeasurementResult) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(mr.Counts))
	for bits, count := range mr.Counts {
		idx := mr.indices[bits]
		out = append(out, Outcome{
			Bitstring:   bits,
			Index:       idx,
			Count:       count,
			Frequency:   float64(count) / float64(mr.Shots),
			Probability: mr.probs[idx],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Index < out[j].Index
	})

	return out
}

/*
Simulator samples measurements from quantum states. It owns its random source,
so a Simulator shared between goroutines must be guarded by the caller.
*/
type Simulator struct {
	rng *rand.Rand
}

func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = NewConfig().newRand()
	}
	return &Simulator{rng: rng}
}

// NewState is a convenience for NewQuantumState.
func (sim *Simulator) NewState(numQubits int) (*QuantumState, error) {
	return NewQuantumState(numQubits)
}

// Apply applies a gate to the state in place and returns it.
func (sim *Simulator) Apply(state *QuantumState, g Gate) (*QuantumState, error) {
	if err := state.Apply(g); err != nil {
		return nil, err
	}
	return state, nil
}

/*
Measure draws shots independent samples from |a|². The state is read, never
collapsed; the probabilities are renormalized once up front so a vector that
drifted by machine epsilon still yields a valid distribution.
*/
func (sim *Simulator) Measure(state *QuantumState, shots int) (*MeasurementResult, error) {
	if shots < 1 {
		return nil, invalidParam("shots must be positive, got %d", shots)
	}

	probs, err := normalizeProbabilities(state.Probabilities())
	if err != nil {
		return nil, err
	}
	dist := distuv.NewCategorical(probs, sim.rng)

	counts := make(map[string]int)
	indices := make(map[string]int)
	for range shots {
		idx := int(dist.Rand())
		bits := state.Bitstring(idx)
		counts[bits]++
		indices[bits] = idx
	}

	amplitudes := make([]complex128, len(state.Vector))
	copy(amplitudes, state.Vector)

	return &MeasurementResult{
		Shots:      shots,
		Counts:     counts,
		Amplitudes: amplitudes,
		probs:      probs,
		indices:    indices,
	}, nil
}

/*
normalizeProbabilities makes probs sum to 1. Drift within normTolerance is
corrected quietly; anything larger is logged before it is corrected.
*/
func normalizeProbabilities(probs []float64) ([]float64, error) {
	var total float64
	for _, p := range probs {
		total += p
	}

	if total == 0 {
		return nil, invalidParam("zero probability mass over %d states", len(probs))
	}

	if math.Abs(total-1) > normTolerance {
		errnie.Info("normalizeProbabilities - total %.9f, renormalizing", total)
	}

	for i := range probs {
		probs[i] /= total
	}

	return probs, nil
}
