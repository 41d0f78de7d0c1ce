package qoptim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Algorithm selects the optimizer a session runs.
type Algorithm string

const (
	AlgorithmAnnealing Algorithm = "annealing"
	AlgorithmGenetic   Algorithm = "genetic"
)

// ParseAlgorithm accepts the wire names and a few aliases; empty means annealing.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "annealing", "quantum_annealing", "anneal":
		return AlgorithmAnnealing, nil
	case "genetic", "quantum_genetic", "ga":
		return AlgorithmGenetic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

// AnnealingParams overrides the configured annealer defaults; zero fields keep them.
type AnnealingParams struct {
	Temperature          float64 `json:"temperature,omitempty"`
	CoolingRate          float64 `json:"cooling_rate,omitempty"`
	Iterations           int     `json:"iterations,omitempty"`
	TunnelingProbability float64 `json:"tunneling_probability,omitempty"`
}

// GeneticParams overrides the configured genetic algorithm defaults.
type GeneticParams struct {
	PopulationSize int     `json:"population_size,omitempty"`
	MutationRate   float64 `json:"mutation_rate,omitempty"`
	CrossoverRate  float64 `json:"crossover_rate,omitempty"`
	Generations    int     `json:"generations,omitempty"`
	QubitSize      int     `json:"qubit_size,omitempty"`
}

/*
QUBORequest describes a QUBO optimization. Exactly one of Problem (for
in-process callers), Matrix, or ProblemType plus Domain is used, in that order
of preference. Domain is the JSON form of the matching problem struct.
*/
type QUBORequest struct {
	Problem     Problem         `json:"-"`
	Matrix      [][]float64     `json:"qubo_matrix,omitempty"`
	ProblemType string          `json:"problem_type,omitempty"`
	Domain      json.RawMessage `json:"domain_data,omitempty"`
	Algorithm   string          `json:"algorithm,omitempty"`
	Annealing   AnnealingParams `json:"annealing,omitempty"`
	Genetic     GeneticParams   `json:"genetic,omitempty"`
}

// WorkflowRequest describes a workflow scheduling optimization.
type WorkflowRequest struct {
	Steps       []WorkflowStep  `json:"steps"`
	Objective   string          `json:"objective,omitempty"`
	Algorithm   string          `json:"algorithm,omitempty"`
	Constraints Constraints     `json:"constraints"`
	Annealing   AnnealingParams `json:"annealing,omitempty"`
	Genetic     GeneticParams   `json:"genetic,omitempty"`
}

// WorkflowPlan is the decoded best solution of a workflow session.
type WorkflowPlan struct {
	Steps         []WorkflowStep `json:"steps"`
	ExecutionTime float64        `json:"execution_time"`
	CriticalPath  []string       `json:"critical_path"`
}

type HistoryStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// SessionResult is what a session hands back to its caller.
type SessionResult struct {
	ID             string        `json:"id"`
	Algorithm      Algorithm     `json:"algorithm_used"`
	BestSolution   any           `json:"best_solution"`
	BestCost       float64       `json:"best_cost"`
	InitialCost    float64       `json:"initial_cost"`
	ImprovementPct float64       `json:"improvement_pct"`
	History        []float64     `json:"iteration_history"`
	HistoryStats   HistoryStats  `json:"history_stats"`
	Iterations     int           `json:"iterations"`
	Elapsed        time.Duration `json:"elapsed"`
}

// outcome is what an optimizer run produces before it is dressed up as a SessionResult.
type outcome struct {
	solution   any
	bestCost   float64
	history    []float64
	iterations int
}

/*
Session wires one encoder to one optimizer. Everything is validated and built
when the session is created, so Run can only fail on cancellation. A session
owns its optimizer and random source and must not be run from two goroutines
at once; separate sessions share nothing.
*/
type Session struct {
	ID        string
	Algorithm Algorithm
	Kind      string

	initialCost float64
	solve       func() outcome
}

func NewQUBOSession(req QUBORequest, cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	algorithm, err := ParseAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}

	problem, err := req.problem()
	if err != nil {
		return nil, err
	}

	encoding, err := Encode(problem)
	if err != nil {
		return nil, err
	}

	n := encoding.Matrix.Size()
	cost := encoding.Matrix.CostFunc()
	initial := make([]bool, n)

	session := &Session{
		ID:          uuid.NewString(),
		Algorithm:   algorithm,
		Kind:        "qubo/" + string(encoding.Type),
		initialCost: cost(initial),
	}

	switch algorithm {
	case AlgorithmGenetic:
		p := req.Genetic.withDefaults(cfg)
		fitness := func(bits []bool) float64 {
			return cost(collapseGenes(bits, p.QubitSize))
		}

		ga, err := NewGeneticAlgorithm(
			fitness, p.PopulationSize, n, p.MutationRate, p.CrossoverRate,
			p.Generations, p.QubitSize, false, WithRand(cfg.newRand()),
		)
		if err != nil {
			return nil, err
		}

		session.solve = func() outcome {
			run := ga.Run()
			return outcome{
				solution:   encoding.Decode(collapseGenes(run.BestState, p.QubitSize)),
				bestCost:   run.BestCost,
				history:    run.History,
				iterations: run.Iterations,
			}
		}
	default:
		p := req.Annealing.withDefaults(cfg)
		annealer, err := NewAnnealer(
			cost, initial, p.Temperature, p.CoolingRate, p.Iterations,
			p.TunnelingProbability, WithRand(cfg.newRand()),
		)
		if err != nil {
			return nil, err
		}

		session.solve = func() outcome {
			run := annealer.Run()
			return outcome{
				solution:   encoding.Decode(run.BestState),
				bestCost:   run.BestCost,
				history:    run.History,
				iterations: run.Iterations,
			}
		}
	}

	return session, nil
}

func NewWorkflowSession(req WorkflowRequest, cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	algorithm, err := ParseAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}

	objective, err := ParseObjective(req.Objective)
	if err != nil {
		return nil, err
	}

	if req.Constraints.MaxParallel < 0 {
		return nil, invalidParam("max parallel must not be negative, got %d", req.Constraints.MaxParallel)
	}

	enc, err := NewWorkflowEncoder(req.Steps, cfg.MaxResource)
	if err != nil {
		return nil, err
	}

	cost := objective.CostFunc(req.Constraints)

	session := &Session{
		ID:        uuid.NewString(),
		Algorithm: algorithm,
		Kind:      "workflow/" + string(objective),
	}

	plan := func(steps []WorkflowStep) WorkflowPlan {
		// Decoded steps come from a validated encoder, so this cannot fail.
		path, _ := CriticalPath(steps)
		return WorkflowPlan{
			Steps:         steps,
			ExecutionTime: ExecutionTime(steps, req.Constraints),
			CriticalPath:  path,
		}
	}

	switch algorithm {
	case AlgorithmGenetic:
		p := req.Genetic.withDefaults(cfg)
		session.initialCost = cost(enc.Steps())

		fitness := func(genome []bool) float64 {
			steps, err := enc.DecodeFromGenetic(genome)
			if err != nil {
				return math.Inf(1)
			}
			return cost(steps)
		}

		// One gene per step; its qubits are the step's share of the genome.
		ga, err := NewGeneticAlgorithm(
			fitness, p.PopulationSize, len(req.Steps), p.MutationRate, p.CrossoverRate,
			p.Generations, enc.GenomeLength()/len(req.Steps), false, WithRand(cfg.newRand()),
		)
		if err != nil {
			return nil, err
		}

		session.solve = func() outcome {
			run := ga.Run()
			steps, _ := enc.DecodeFromGenetic(run.BestState)
			return outcome{
				solution:   plan(steps),
				bestCost:   run.BestCost,
				history:    run.History,
				iterations: run.Iterations,
			}
		}
	default:
		p := req.Annealing.withDefaults(cfg)
		annealCost := func(encoded []int) float64 {
			steps, err := enc.DecodeFromAnnealing(encoded)
			if err != nil {
				return math.Inf(1)
			}
			return cost(steps)
		}

		// Measured from the state the annealer actually starts in.
		initial := enc.EncodeForAnnealing()
		session.initialCost = annealCost(initial)

		annealer, err := NewAnnealer(
			annealCost, initial, p.Temperature, p.CoolingRate,
			p.Iterations, p.TunnelingProbability, WithRand(cfg.newRand()),
		)
		if err != nil {
			return nil, err
		}
		annealer.WithMoves(enc.Moves())

		session.solve = func() outcome {
			run := annealer.Run()
			steps, _ := enc.DecodeFromAnnealing(run.BestState)
			return outcome{
				solution:   plan(steps),
				bestCost:   run.BestCost,
				history:    run.History,
				iterations: run.Iterations,
			}
		}
	}

	return session, nil
}

/*
Run executes the optimizer and decodes its best state. The context is only
consulted before the run starts; once started, a run is bounded by its
iteration or generation count.
*/
func (s *Session) Run(ctx context.Context) (*SessionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("session %s not started: %w", s.ID, err)
	}

	errnie.Info("Session.Run - %s %s (%s)", s.Kind, s.ID, s.Algorithm)

	start := time.Now()
	out := s.solve()

	result := &SessionResult{
		ID:             s.ID,
		Algorithm:      s.Algorithm,
		BestSolution:   out.solution,
		BestCost:       out.bestCost,
		InitialCost:    s.initialCost,
		ImprovementPct: improvement(s.initialCost, out.bestCost),
		History:        out.history,
		HistoryStats:   summarize(out.history),
		Iterations:     out.iterations,
		Elapsed:        time.Since(start),
	}

	errnie.Info(
		"Session.Run - %s done in %s, cost %g -> %g (%.1f%%)",
		s.ID, result.Elapsed, result.InitialCost, result.BestCost, result.ImprovementPct,
	)

	return result, nil
}

func (req QUBORequest) problem() (Problem, error) {
	if req.Problem != nil {
		return req.Problem, nil
	}
	if len(req.Matrix) > 0 {
		return CustomProblem{Matrix: req.Matrix}, nil
	}

	problemType, err := ParseProblemType(req.ProblemType)
	if err != nil {
		return nil, err
	}

	var problem Problem
	switch problemType {
	case ProblemMaxCut:
		problem = &MaxCutProblem{}
	case ProblemTSP:
		problem = &TSPProblem{}
	case ProblemPortfolio:
		problem = &PortfolioProblem{}
	default:
		problem = &CustomProblem{}
	}

	if len(req.Domain) == 0 {
		return nil, invalidParam("%s problem without domain data", problemType)
	}
	if err := json.Unmarshal(req.Domain, problem); err != nil {
		return nil, invalidParam("%s domain data: %v", problemType, err)
	}

	return problem, nil
}

func (p AnnealingParams) withDefaults(cfg *Config) AnnealingParams {
	if p.Temperature == 0 {
		p.Temperature = cfg.AnnealTemperature
	}
	if p.CoolingRate == 0 {
		p.CoolingRate = cfg.AnnealCoolingRate
	}
	if p.Iterations == 0 {
		p.Iterations = cfg.AnnealIterations
	}
	if p.TunnelingProbability == 0 {
		p.TunnelingProbability = cfg.TunnelingProbability
	}
	return p
}

func (p GeneticParams) withDefaults(cfg *Config) GeneticParams {
	if p.PopulationSize == 0 {
		p.PopulationSize = cfg.GAPopulation
	}
	if p.MutationRate == 0 {
		p.MutationRate = cfg.GAMutationRate
	}
	if p.CrossoverRate == 0 {
		p.CrossoverRate = cfg.GACrossoverRate
	}
	if p.Generations == 0 {
		p.Generations = cfg.GAGenerations
	}
	if p.QubitSize == 0 {
		p.QubitSize = cfg.GAQubitSize
	}
	return p
}

// collapseGenes reads each run of size qubits as one variable, set when most of them are.
func collapseGenes(bits []bool, size int) []bool {
	if size <= 1 {
		return bits
	}

	out := make([]bool, len(bits)/size)
	for i := range out {
		set := 0
		for _, b := range bits[i*size : (i+1)*size] {
			if b {
				set++
			}
		}
		out[i] = 2*set > size
	}
	return out
}

// improvement is the relative cost reduction in percent; zero when there is no baseline.
func improvement(initial, best float64) float64 {
	if initial == 0 || math.IsInf(initial, 0) || math.IsNaN(initial) {
		return 0
	}
	return (initial - best) / math.Abs(initial) * 100
}

func summarize(history []float64) HistoryStats {
	if len(history) == 0 {
		return HistoryStats{}
	}

	mean, std := stat.MeanStdDev(history, nil)
	if len(history) < 2 {
		std = 0
	}

	return HistoryStats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(history),
		Max:    floats.Max(history),
	}
}
