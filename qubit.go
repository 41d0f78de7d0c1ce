package qoptim

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
)

// Qubit is a single α|0⟩ + β|1⟩ superposition, the gene of the genetic algorithm.
type Qubit struct {
	alpha complex128 // |0⟩ amplitude
	beta  complex128 // |1⟩ amplitude
}

func NewQubit(alpha, beta complex128) Qubit {
	q := Qubit{alpha: alpha, beta: beta}
	q.Normalize()
	return q
}

// SuperposedQubit returns H|0⟩, the equal superposition every gene starts in.
func SuperposedQubit() Qubit {
	q := Qubit{alpha: 1}
	q.ApplyHadamard()
	return q
}

func (q Qubit) Amplitudes() (complex128, complex128) {
	return q.alpha, q.beta
}

func (q *Qubit) ApplyHadamard() {
	// H = 1/√2 * [1  1]
	//           [1 -1]
	newAlpha := (q.alpha + q.beta) / complex(math.Sqrt(2), 0)
	newBeta := (q.alpha - q.beta) / complex(math.Sqrt(2), 0)
	q.alpha = newAlpha
	q.beta = newBeta
}

// ApplyNot is the X gate on the superposition itself.
func (q *Qubit) ApplyNot() {
	q.alpha, q.beta = q.beta, q.alpha
}

// Rotate applies R(θ) = [cos -sin; sin cos].
func (q *Qubit) Rotate(theta float64) {
	c, s := complex(math.Cos(theta), 0), complex(math.Sin(theta), 0)
	q.alpha, q.beta = c*q.alpha-s*q.beta, s*q.alpha+c*q.beta
}

/*
RotateToward rotates by theta in whichever direction moves probability mass
toward the given bit. The direction flips with the sign of Re(α·β̄), so a
qubit that overshoots |1⟩ (or |0⟩) is pulled back instead of wrapping around.
*/
func (q *Qubit) RotateToward(one bool, theta float64) {
	sign := 1.0
	if real(q.alpha*cmplx.Conj(q.beta)) < 0 {
		sign = -1
	}
	if !one {
		sign = -sign
	}
	q.Rotate(sign * theta)
	q.Normalize()
}

func (q *Qubit) Normalize() {
	norm := math.Sqrt(sqAbs(q.alpha) + sqAbs(q.beta))
	if norm == 0 {
		q.alpha, q.beta = 1, 0
		return
	}
	q.alpha /= complex(norm, 0)
	q.beta /= complex(norm, 0)
}

// ProbabilityOne is |β|².
func (q Qubit) ProbabilityOne() float64 {
	return sqAbs(q.beta)
}

// Observe samples a classical bit without collapsing the qubit.
func (q Qubit) Observe(rng *rand.Rand) bool {
	return rng.Float64() < q.ProbabilityOne()
}
