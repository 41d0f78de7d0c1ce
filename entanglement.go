package qoptim

import "math/rand/v2"

/*
entangle performs the crossover step on superpositions. Individuals are taken
in consecutive pairs; with probability rate a pair picks a split point and
exchanges every qubit after it, amplitudes included. Nothing here looks at
measured bits: the offspring inherit their parents' uncertainty, not one
sampled outcome of it.
*/
func entangle(rng *rand.Rand, population [][]Qubit, rate float64) int {
	crossed := 0

	for i := 0; i+1 < len(population); i += 2 {
		a, b := population[i], population[i+1]
		if len(a) < 2 || rng.Float64() >= rate {
			continue
		}

		split := 1 + rng.IntN(len(a)-1)
		for k := split; k < len(a); k++ {
			a[k], b[k] = b[k], a[k]
		}
		crossed++
	}

	return crossed
}

// decohere flips qubits in place with probability rate each.
func decohere(rng *rand.Rand, population [][]Qubit, rate float64) int {
	flipped := 0

	for _, individual := range population {
		for k := range individual {
			if rng.Float64() < rate {
				individual[k].ApplyNot()
				flipped++
			}
		}
	}

	return flipped
}
