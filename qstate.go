package qoptim

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/theapemachine/errnie"
)

const (
	MinQubits = 1
	MaxQubits = 10

	// normTolerance is how far Σ|a|² may drift from 1 before renormalizing.
	normTolerance = 1e-6
)

/*
QuantumState is the amplitude vector of an n-qubit register. Basis index i
holds the amplitude of the state whose qubit k equals bit k of i.

A QuantumState is mutated in place and is not safe for concurrent use.
*/
type QuantumState struct {
	NumQubits int
	Vector    []complex128
}

// NewQuantumState returns the |0…0⟩ state of numQubits qubits.
func NewQuantumState(numQubits int) (*QuantumState, error) {
	if numQubits < MinQubits || numQubits > MaxQubits {
		return nil, fmt.Errorf(
			"%w: %d outside [%d,%d]", ErrInvalidQubitCount, numQubits, MinQubits, MaxQubits,
		)
	}

	vector := make([]complex128, 1<<numQubits)
	vector[0] = 1

	return &QuantumState{NumQubits: numQubits, Vector: vector}, nil
}

func (qs *QuantumState) Clone() *QuantumState {
	vector := make([]complex128, len(qs.Vector))
	copy(vector, qs.Vector)
	return &QuantumState{NumQubits: qs.NumQubits, Vector: vector}
}

// Apply validates and applies a single gate.
func (qs *QuantumState) Apply(g Gate) error {
	if err := g.validate(qs.NumQubits); err != nil {
		return err
	}

	qs.apply(g)
	qs.renormalize()
	return nil
}

/*
ApplyAll validates the whole sequence before touching the vector, so a bad
gate late in the sequence leaves the state exactly as it was.
*/
func (qs *QuantumState) ApplyAll(gates ...Gate) error {
	for i, g := range gates {
		if err := g.validate(qs.NumQubits); err != nil {
			return fmt.Errorf("gate %d: %w", i, err)
		}
	}

	for _, g := range gates {
		qs.apply(g)
		qs.renormalize()
	}

	return nil
}

func (qs *QuantumState) apply(g Gate) {
	switch g.Kind {
	case GateCNOT:
		qs.applyCNOT(g.Control, g.Target)
	case GateSWAP:
		qs.applySWAP(g.Target, g.Control)
	default:
		qs.applySingle(singleQubitGates[g.Kind], g.Target)
	}
}

func (qs *QuantumState) applySingle(m unitary, target int) {
	bit := 1 << target
	prev := make([]complex128, len(qs.Vector))
	copy(prev, qs.Vector)

	for i := range prev {
		if i&bit != 0 {
			continue
		}
		i1 := i | bit
		a0, a1 := prev[i], prev[i1]
		qs.Vector[i] = m[0][0]*a0 + m[0][1]*a1
		qs.Vector[i1] = m[1][0]*a0 + m[1][1]*a1
	}
}

func (qs *QuantumState) applyCNOT(control, target int) {
	cBit, tBit := 1<<control, 1<<target
	next := make([]complex128, len(qs.Vector))

	for i := range qs.Vector {
		if i&cBit != 0 {
			next[i] = qs.Vector[i^tBit]
		} else {
			next[i] = qs.Vector[i]
		}
	}

	qs.Vector = next
}

func (qs *QuantumState) applySWAP(a, b int) {
	aBit, bBit := 1<<a, 1<<b

	for i := range qs.Vector {
		// Visit each differing pair once, from the side where a is set.
		if i&aBit != 0 && i&bBit == 0 {
			j := (i &^ aBit) | bBit
			qs.Vector[i], qs.Vector[j] = qs.Vector[j], qs.Vector[i]
		}
	}
}

// Norm returns Σ|a|².
func (qs *QuantumState) Norm() float64 {
	var total float64
	for _, a := range qs.Vector {
		total += sqAbs(a)
	}
	return total
}

// Probabilities returns |a|² for every basis index.
func (qs *QuantumState) Probabilities() []float64 {
	probs := make([]float64, len(qs.Vector))
	for i, a := range qs.Vector {
		probs[i] = sqAbs(a)
	}
	return probs
}

/*
renormalize absorbs floating-point drift. It is silent below normTolerance
and logs when it actually has to correct the vector.
*/
func (qs *QuantumState) renormalize() {
	norm := qs.Norm()
	if math.Abs(norm-1) <= normTolerance {
		return
	}

	if norm == 0 {
		errnie.Warn("renormalize - zero vector, resetting to |0⟩")
		qs.Vector[0] = 1
		return
	}

	errnie.Debug("renormalize - drift %.3e on %d qubits", norm-1, qs.NumQubits)
	scale := complex(1/math.Sqrt(norm), 0)
	for i := range qs.Vector {
		qs.Vector[i] *= scale
	}
}

// Bitstring renders a basis index with qubit n-1 leftmost.
func (qs *QuantumState) Bitstring(index int) string {
	return fmt.Sprintf("%0*b", qs.NumQubits, index)
}

func sqAbs(a complex128) float64 {
	m := cmplx.Abs(a)
	return m * m
}
