package qoptim

import (
	"math"
	"math/rand/v2"

	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/floats"
)

const rotationStep = 0.1 * math.Pi

/*
GeneticAlgorithm evolves a population of qubit chromosomes. Each generation
measures every chromosome into a classical bit vector, scores it, and rotates
the qubits toward what was measured by an angle that grows with how good the
measurement was. Crossover and mutation then act on the superpositions
themselves.

A chromosome is geneLength genes of qubitSize qubits each; the fitness
function sees the flattened geneLength*qubitSize bit vector.
*/
type GeneticAlgorithm struct {
	fitness        func([]bool) float64
	populationSize int
	geneLength     int
	qubitSize      int
	mutationRate   float64
	crossoverRate  float64
	generations    int
	maximize       bool
	rng            *rand.Rand
}

func NewGeneticAlgorithm(
	fitness func([]bool) float64,
	populationSize, geneLength int,
	mutationRate, crossoverRate float64,
	generations, qubitSize int,
	maximize bool,
	opts ...Option,
) (*GeneticAlgorithm, error) {
	switch {
	case fitness == nil:
		return nil, invalidParam("genetic algorithm needs a fitness function")
	case populationSize < 1:
		return nil, invalidParam("population size must be positive, got %d", populationSize)
	case geneLength < 1:
		return nil, invalidParam("gene length must be positive, got %d", geneLength)
	case qubitSize < 1:
		return nil, invalidParam("qubit size must be positive, got %d", qubitSize)
	case mutationRate < 0 || mutationRate > 1:
		return nil, invalidParam("mutation rate must be in [0,1], got %g", mutationRate)
	case crossoverRate < 0 || crossoverRate > 1:
		return nil, invalidParam("crossover rate must be in [0,1], got %g", crossoverRate)
	case generations < 1:
		return nil, invalidParam("generations must be positive, got %d", generations)
	}

	return &GeneticAlgorithm{
		fitness:        fitness,
		populationSize: populationSize,
		geneLength:     geneLength,
		qubitSize:      qubitSize,
		mutationRate:   mutationRate,
		crossoverRate:  crossoverRate,
		generations:    generations,
		maximize:       maximize,
		rng:            newOptions(opts).rng,
	}, nil
}

// ChromosomeLength is the number of qubits, and measured bits, per individual.
func (ga *GeneticAlgorithm) ChromosomeLength() int {
	return ga.geneLength * ga.qubitSize
}

func (ga *GeneticAlgorithm) Run() *OptimizationRun[bool] {
	population := ga.initialize()
	measured := make([][]bool, ga.populationSize)
	scores := make([]float64, ga.populationSize)

	run := &OptimizationRun[bool]{
		History: make([]float64, 0, ga.generations),
	}
	haveBest := false

	for range ga.generations {
		for i, individual := range population {
			measured[i] = ga.measure(individual)
			scores[i] = ga.fitness(measured[i])
		}

		genBest := ga.bestIndex(scores)
		if !haveBest || ga.better(scores[genBest], run.BestCost) {
			run.BestState = clone(measured[genBest])
			run.BestCost = scores[genBest]
			haveBest = true
		}

		ga.rotate(population, measured, scores)
		run.Accepted += entangle(ga.rng, population, ga.crossoverRate)
		decohere(ga.rng, population, ga.mutationRate)

		run.History = append(run.History, scores[genBest])
		run.Iterations++
	}

	run.CurrentState = clone(measured[ga.bestIndex(scores)])

	errnie.Debug(
		"GeneticAlgorithm.Run - %d generations of %d x %d qubits, best %g, crossovers %d",
		run.Iterations, ga.populationSize, ga.ChromosomeLength(), run.BestCost, run.Accepted,
	)

	return run
}

func (ga *GeneticAlgorithm) initialize() [][]Qubit {
	population := make([][]Qubit, ga.populationSize)
	for i := range population {
		population[i] = make([]Qubit, ga.ChromosomeLength())
		for k := range population[i] {
			population[i][k] = SuperposedQubit()
		}
	}
	return population
}

func (ga *GeneticAlgorithm) measure(individual []Qubit) []bool {
	bits := make([]bool, len(individual))
	for k, q := range individual {
		bits[k] = q.Observe(ga.rng)
	}
	return bits
}

/*
rotate nudges each individual toward its own measurement. Fitness is min-max
normalised over the generation, oriented so that 1 is the best individual; a
generation where everyone scored the same carries no signal and is left as is.
*/
func (ga *GeneticAlgorithm) rotate(population [][]Qubit, measured [][]bool, scores []float64) {
	lo, hi := floats.Min(scores), floats.Max(scores)
	spread := hi - lo
	if spread == 0 {
		return
	}

	for i, individual := range population {
		norm := (scores[i] - lo) / spread
		if !ga.maximize {
			norm = (hi - scores[i]) / spread
		}

		theta := rotationStep * norm
		if theta == 0 {
			continue
		}

		for k := range individual {
			individual[k].RotateToward(measured[i][k], theta)
		}
	}
}

func (ga *GeneticAlgorithm) better(a, b float64) bool {
	if ga.maximize {
		return a > b
	}
	return a < b
}

func (ga *GeneticAlgorithm) bestIndex(scores []float64) int {
	if ga.maximize {
		return floats.MaxIdx(scores)
	}
	return floats.MinIdx(scores)
}
