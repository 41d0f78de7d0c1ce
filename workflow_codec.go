package qoptim

import (
	"fmt"
	"math/bits"
	"math/rand/v2"
	"sort"

	"github.com/theapemachine/errnie"
)

// geneticResourceLevels is what the two resource bits of a genetic step can express.
const geneticResourceLevels = 4

/*
WorkflowEncoder translates between a validated step list and the flat vectors
the optimizers work on. It keeps the original steps; every decode produces a
fresh, dependency-respecting step list built from them. The identity order
keeps the steps as they were given, so encoding and decoding them unchanged
reproduces the input.

Annealing vectors are [order permutation | resource per original step].
Genetic genomes are 3 bits per original step (two bits of resource level 1-4,
one priority bit) followed by an order tail of keyBits bits per step; steps are
ordered by their key.
*/
type WorkflowEncoder struct {
	MaxResource int

	steps   []WorkflowStep
	keyBits int
}

func NewWorkflowEncoder(steps []WorkflowStep, maxResource int) (*WorkflowEncoder, error) {
	if err := ValidateWorkflow(steps); err != nil {
		return nil, err
	}
	if maxResource < 1 {
		return nil, invalidParam("max resource must be positive, got %d", maxResource)
	}
	for _, step := range steps {
		if step.ResourceAllocation > maxResource {
			return nil, invalidParam(
				"step %q has resource allocation %d above max %d", step.ID, step.ResourceAllocation, maxResource,
			)
		}
	}

	kept := make([]WorkflowStep, len(steps))
	for i, step := range steps {
		kept[i] = step.clone()
	}

	return &WorkflowEncoder{
		MaxResource: maxResource,
		steps:       kept,
		keyBits:     max(bits.Len(uint(len(steps)-1)), 1),
	}, nil
}

// Steps returns a copy of the steps the encoder was built from.
func (enc *WorkflowEncoder) Steps() []WorkflowStep {
	out := make([]WorkflowStep, len(enc.steps))
	for i, step := range enc.steps {
		out[i] = step.clone()
	}
	return out
}

func (enc *WorkflowEncoder) EncodeForAnnealing() []int {
	n := len(enc.steps)
	encoded := make([]int, 2*n)
	for i, step := range enc.steps {
		encoded[i] = i
		encoded[n+i] = enc.clampResource(step.ResourceAllocation)
	}
	return encoded
}

/*
DecodeFromAnnealing rebuilds the step list. An order segment that is not a
permutation is replaced by the identity order rather than rejected; resources
are clamped into [1, MaxResource]. Any other order is repaired so that no step
precedes its dependencies.
*/
func (enc *WorkflowEncoder) DecodeFromAnnealing(encoded []int) ([]WorkflowStep, error) {
	n := len(enc.steps)
	if len(encoded) != 2*n {
		return nil, fmt.Errorf(
			"%w: annealing vector has %d elements, want %d", ErrDimensionMismatch, len(encoded), 2*n,
		)
	}

	order := encoded[:n]
	if !isPermutation(order) {
		errnie.Debug("WorkflowEncoder.DecodeFromAnnealing - order %v repaired to identity", order)
		order = identityOrder(n)
	}

	resources := make([]int, n)
	for i := range n {
		resources[i] = enc.clampResource(encoded[n+i])
	}

	return enc.assemble(order, resources, nil), nil
}

func (enc *WorkflowEncoder) GenomeLength() int {
	return len(enc.steps) * (3 + enc.keyBits)
}

func (enc *WorkflowEncoder) EncodeForGenetic() []bool {
	n := len(enc.steps)
	genome := make([]bool, enc.GenomeLength())

	for i, step := range enc.steps {
		level := min(enc.clampResource(step.ResourceAllocation), geneticResourceLevels) - 1
		genome[3*i] = level&1 != 0
		genome[3*i+1] = level&2 != 0
		genome[3*i+2] = step.Priority > 0

		key := genome[3*n+i*enc.keyBits : 3*n+(i+1)*enc.keyBits]
		for b := range key {
			key[b] = i&(1<<(enc.keyBits-1-b)) != 0
		}
	}

	return genome
}

/*
DecodeFromGenetic rebuilds the step list from a genome. Steps are sorted by
their order key; equal keys go to the prioritised step first, then to the
step that came first originally.
*/
func (enc *WorkflowEncoder) DecodeFromGenetic(genome []bool) ([]WorkflowStep, error) {
	n := len(enc.steps)
	if len(genome) != enc.GenomeLength() {
		return nil, fmt.Errorf(
			"%w: genome has %d bits, want %d", ErrDimensionMismatch, len(genome), enc.GenomeLength(),
		)
	}

	resources := make([]int, n)
	priorities := make([]int, n)
	keys := make([]int, n)

	for i := range n {
		level := 1
		if genome[3*i] {
			level++
		}
		if genome[3*i+1] {
			level += 2
		}
		resources[i] = enc.clampResource(level)

		if genome[3*i+2] {
			priorities[i] = 1
		}

		for _, bit := range genome[3*n+i*enc.keyBits : 3*n+(i+1)*enc.keyBits] {
			keys[i] <<= 1
			if bit {
				keys[i] |= 1
			}
		}
	}

	order := identityOrder(n)
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if keys[i] != keys[j] {
			return keys[i] < keys[j]
		}
		return priorities[i] > priorities[j]
	})

	return enc.assemble(order, resources, priorities), nil
}

/*
assemble lays the original steps out in the given order, carrying the decoded
resources and priorities. A moved order is repaired so that no step precedes
its dependencies; the identity order is the input order and stays as it is.
*/
func (enc *WorkflowEncoder) assemble(order, resources, priorities []int) []WorkflowStep {
	if !isIdentity(order) {
		order = topologicalOrder(enc.steps, order)
	}

	out := make([]WorkflowStep, 0, len(enc.steps))
	for _, i := range order {
		step := enc.steps[i].clone()
		step.ResourceAllocation = resources[i]
		if priorities != nil {
			step.Priority = priorities[i]
		}
		out = append(out, step)
	}
	return out
}

func (enc *WorkflowEncoder) clampResource(r int) int {
	return min(max(r, 1), enc.MaxResource)
}

/*
Moves returns annealing moves that keep a vector decodable: the neighbor
either swaps two order positions or nudges one resource by ±1, and the tunnel
shuffles a segment of the order and redraws a few resources.
*/
func (enc *WorkflowEncoder) Moves() (neighbor, tunnel MoveFunc[int]) {
	n := len(enc.steps)

	neighbor = func(rng *rand.Rand, current []int) []int {
		next := clone(current)
		if n > 1 && rng.IntN(2) == 0 {
			copy(next[:n], swapPair(rng, next[:n]))
			return next
		}
		i := n + rng.IntN(n)
		if rng.IntN(2) == 0 {
			next[i]++
		} else {
			next[i]--
		}
		next[i] = enc.clampResource(next[i])
		return next
	}

	tunnel = func(rng *rand.Rand, current []int) []int {
		next := clone(current)
		copy(next[:n], shuffleSegment(rng, next[:n]))
		for i := n; i < 2*n; i++ {
			if rng.Float64() < tunnelFlipRate {
				next[i] = 1 + rng.IntN(enc.MaxResource)
			}
		}
		return next
	}

	return neighbor, tunnel
}

func isPermutation(order []int) bool {
	seen := make([]bool, len(order))
	for _, v := range order {
		if v < 0 || v >= len(order) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

func isIdentity(order []int) bool {
	for i, v := range order {
		if v != i {
			return false
		}
	}
	return true
}
