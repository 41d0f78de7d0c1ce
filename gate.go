package qoptim

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// GateKind tags the gates the simulator understands.
type GateKind int

const (
	GateH GateKind = iota
	GateX
	GateY
	GateZ
	GateS
	GateT
	GateCNOT
	GateSWAP
)

var gateNames = map[GateKind]string{
	GateH:    "H",
	GateX:    "X",
	GateY:    "Y",
	GateZ:    "Z",
	GateS:    "S",
	GateT:    "T",
	GateCNOT: "CNOT",
	GateSWAP: "SWAP",
}

func (k GateKind) String() string {
	if name, ok := gateNames[k]; ok {
		return name
	}
	return fmt.Sprintf("GateKind(%d)", int(k))
}

// TwoQubit reports whether the gate acts on a pair of qubits.
func (k GateKind) TwoQubit() bool {
	return k == GateCNOT || k == GateSWAP
}

// ParseGateKind maps a wire name onto a GateKind.
func ParseGateKind(name string) (GateKind, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "H", "HADAMARD":
		return GateH, nil
	case "X", "NOT":
		return GateX, nil
	case "Y":
		return GateY, nil
	case "Z":
		return GateZ, nil
	case "S":
		return GateS, nil
	case "T":
		return GateT, nil
	case "CNOT", "CX":
		return GateCNOT, nil
	case "SWAP":
		return GateSWAP, nil
	}
	return 0, fmt.Errorf("%w: unknown gate %q", ErrInvalidParameter, name)
}

/*
Gate is a single instruction for the state vector. Single-qubit gates only use
Target. CNOT uses Control as the control qubit; SWAP uses Control as the
second qubit of the exchanged pair.
*/
type Gate struct {
	Kind    GateKind
	Target  int
	Control int
}

func H(target int) Gate { return Gate{Kind: GateH, Target: target} }
func X(target int) Gate { return Gate{Kind: GateX, Target: target} }
func Y(target int) Gate { return Gate{Kind: GateY, Target: target} }
func Z(target int) Gate { return Gate{Kind: GateZ, Target: target} }
func S(target int) Gate { return Gate{Kind: GateS, Target: target} }
func T(target int) Gate { return Gate{Kind: GateT, Target: target} }

func CNOT(control, target int) Gate {
	return Gate{Kind: GateCNOT, Target: target, Control: control}
}

func SWAP(a, b int) Gate {
	return Gate{Kind: GateSWAP, Target: a, Control: b}
}

func (g Gate) String() string {
	if g.Kind.TwoQubit() {
		return fmt.Sprintf("%s(%d,%d)", g.Kind, g.Control, g.Target)
	}
	return fmt.Sprintf("%s(%d)", g.Kind, g.Target)
}

// validate checks the gate against a register of numQubits.
func (g Gate) validate(numQubits int) error {
	if _, ok := gateNames[g.Kind]; !ok {
		return fmt.Errorf("%w: unknown gate kind %d", ErrInvalidParameter, int(g.Kind))
	}

	if g.Target < 0 || g.Target >= numQubits {
		return fmt.Errorf("%w: %s target %d outside [0,%d)", ErrInvalidGateTarget, g, g.Target, numQubits)
	}

	if !g.Kind.TwoQubit() {
		return nil
	}

	if g.Control < 0 || g.Control >= numQubits {
		return fmt.Errorf("%w: %s control %d outside [0,%d)", ErrInvalidGateControl, g, g.Control, numQubits)
	}

	if g.Control == g.Target {
		return fmt.Errorf("%w: %s control equals target", ErrInvalidGateControl, g)
	}

	return nil
}

// unitary is a 2x2 single-qubit gate in row-major order.
type unitary [2][2]complex128

var invSqrt2 = complex(1/math.Sqrt2, 0)

var singleQubitGates = map[GateKind]unitary{
	// H = 1/√2 * [1  1]
	//           [1 -1]
	GateH: {{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}},
	GateX: {{0, 1}, {1, 0}},
	GateY: {{0, -1i}, {1i, 0}},
	GateZ: {{1, 0}, {0, -1}},
	GateS: {{1, 0}, {0, 1i}},
	GateT: {{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}},
}
