package qoptim

import (
	"fmt"
	"math/cmplx"

	"github.com/theapemachine/errnie"
)

// GateSpec is the wire form of a gate. Control is required for CNOT and SWAP.
type GateSpec struct {
	Name    string `json:"gate"`
	Target  int    `json:"target"`
	Control *int   `json:"control,omitempty"`
}

func (gs GateSpec) Gate() (Gate, error) {
	kind, err := ParseGateKind(gs.Name)
	if err != nil {
		return Gate{}, err
	}

	g := Gate{Kind: kind, Target: gs.Target}
	if kind.TwoQubit() {
		if gs.Control == nil {
			return Gate{}, fmt.Errorf("%w: %s needs a control qubit", ErrInvalidGateControl, kind)
		}
		g.Control = *gs.Control
	}

	return g, nil
}

// CircuitRequest asks for a gate sequence to be run and measured.
type CircuitRequest struct {
	Qubits int        `json:"qubits"`
	Gates  []GateSpec `json:"gate_sequence"`
	Shots  int        `json:"shots"`
}

type OutcomeStat struct {
	Count       int     `json:"count"`
	Probability float64 `json:"probability"`
}

type AmplitudeSpec struct {
	Basis string  `json:"basis"`
	Real  float64 `json:"real"`
	Imag  float64 `json:"imag"`
	Phase float64 `json:"phase"`
}

// CircuitResult is the wire answer: per-bitstring counts and the final vector.
type CircuitResult struct {
	Counts     map[string]OutcomeStat `json:"counts"`
	Amplitudes []AmplitudeSpec        `json:"amplitudes"`
	Shots      int                    `json:"shots"`
}

/*
RunCircuit parses and validates the whole gate sequence, applies it to a fresh
register and measures it. Nothing is applied if any gate is invalid.
*/
func (sim *Simulator) RunCircuit(req CircuitRequest) (*CircuitResult, error) {
	state, err := NewQuantumState(req.Qubits)
	if err != nil {
		return nil, err
	}

	gates := make([]Gate, 0, len(req.Gates))
	for i, spec := range req.Gates {
		g, err := spec.Gate()
		if err != nil {
			return nil, fmt.Errorf("gate %d: %w", i, err)
		}
		gates = append(gates, g)
	}

	if err := state.ApplyAll(gates...); err != nil {
		return nil, err
	}

	measured, err := sim.Measure(state, req.Shots)
	if err != nil {
		return nil, err
	}

	errnie.Info("RunCircuit - qubits %d, gates %d, shots %d", req.Qubits, len(gates), req.Shots)

	result := &CircuitResult{
		Counts:     make(map[string]OutcomeStat, len(measured.Counts)),
		Amplitudes: make([]AmplitudeSpec, len(measured.Amplitudes)),
		Shots:      measured.Shots,
	}

	for _, o := range measured.Outcomes() {
		result.Counts[o.Bitstring] = OutcomeStat{Count: o.Count, Probability: o.Probability}
	}

	for i, a := range measured.Amplitudes {
		result.Amplitudes[i] = AmplitudeSpec{
			Basis: state.Bitstring(i),
			Real:  real(a),
			Imag:  imag(a),
			Phase: cmplx.Phase(a),
		}
	}

	return result, nil
}
