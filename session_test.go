package qoptim

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	. "github.com/smartystreets/goconvey/convey"
)

func seededConfig(seed uint64) *Config {
	cfg := NewConfig()
	cfg.Seed = seed
	return cfg
}

func TestParseAlgorithm(t *testing.T) {
	Convey("Given algorithm names", t, func() {
		a, err := ParseAlgorithm("")
		So(err, ShouldBeNil)
		So(a, ShouldEqual, AlgorithmAnnealing)

		a, _ = ParseAlgorithm("GA")
		So(a, ShouldEqual, AlgorithmGenetic)

		_, err = ParseAlgorithm("tabu")
		So(errors.Is(err, ErrUnsupportedAlgorithm), ShouldBeTrue)
	})
}

func TestQUBOSession(t *testing.T) {
	Convey("Given a MaxCut problem on four nodes", t, func() {
		problem := MaxCutProblem{Adjacency: squareGraph()}
		enc, _ := Encode(problem)
		_, optimum, _ := BruteForce(enc.Matrix)

		Convey("When it is annealed for 600 iterations", func() {
			session, err := NewQUBOSession(QUBORequest{
				Problem:   problem,
				Annealing: AnnealingParams{Iterations: 600},
			}, seededConfig(7))
			So(err, ShouldBeNil)

			result, err := session.Run(context.Background())
			So(err, ShouldBeNil)

			Convey("Then the best energy is within 10% of the exhaustive optimum", func() {
				So(result.BestCost, ShouldBeLessThanOrEqualTo, 0.9*optimum)
				So(result.Algorithm, ShouldEqual, AlgorithmAnnealing)
				So(len(result.History), ShouldEqual, 600)
			})

			Convey("Then the solution is decoded into a cut", func() {
				cut, ok := result.BestSolution.(Cut)
				So(ok, ShouldBeTrue)
				So(cut.Weight, ShouldAlmostEqual, -result.BestCost, tolerance)
			})

			Convey("Then history statistics are filled in", func() {
				So(result.HistoryStats.Min, ShouldBeLessThanOrEqualTo, result.HistoryStats.Mean)
				So(result.HistoryStats.Max, ShouldBeGreaterThanOrEqualTo, result.HistoryStats.Mean)
				So(result.ID, ShouldEqual, session.ID)
			})
		})

		Convey("When it is evolved by the genetic algorithm", func() {
			session, err := NewQUBOSession(QUBORequest{
				Problem:   problem,
				Algorithm: "genetic",
				Genetic:   GeneticParams{PopulationSize: 20, Generations: 40},
			}, seededConfig(7))
			So(err, ShouldBeNil)

			result, _ := session.Run(context.Background())

			Convey("Then it finds the optimum too", func() {
				So(result.BestCost, ShouldAlmostEqual, optimum, tolerance)
				So(len(result.History), ShouldEqual, 40)
			})
		})

		Convey("When each variable is carried by three qubits", func() {
			session, err := NewQUBOSession(QUBORequest{
				Problem:   problem,
				Algorithm: "genetic",
				Genetic:   GeneticParams{PopulationSize: 20, Generations: 40, QubitSize: 3},
			}, seededConfig(3))
			So(err, ShouldBeNil)

			result, _ := session.Run(context.Background())

			Convey("Then the decoded cut still covers every node", func() {
				cut := result.BestSolution.(Cut)
				So(len(cut.Left)+len(cut.Right), ShouldEqual, 4)
				So(cut.Weight, ShouldAlmostEqual, -result.BestCost, tolerance)
			})
		})
	})

	Convey("Given requests in their wire form", t, func() {
		var req QUBORequest
		err := json.Unmarshal([]byte(`{
			"problem_type": "maxcut",
			"domain_data": {"adjacency": [[0, 2], [2, 0]]},
			"annealing": {"iterations": 50}
		}`), &req)
		So(err, ShouldBeNil)

		session, err := NewQUBOSession(req, seededConfig(1))
		So(err, ShouldBeNil)
		So(session.Kind, ShouldEqual, "qubo/maxcut")

		result, _ := session.Run(context.Background())
		So(result.BestCost, ShouldEqual, -2.0)

		Convey("A raw matrix becomes a custom problem", func() {
			session, err := NewQUBOSession(QUBORequest{Matrix: [][]float64{{-1}}}, seededConfig(1))
			So(err, ShouldBeNil)
			So(session.Kind, ShouldEqual, "qubo/custom")
		})
	})

	Convey("Given bad requests", t, func() {
		_, err := NewQUBOSession(QUBORequest{ProblemType: "knapsack"}, nil)
		So(errors.Is(err, ErrUnsupportedProblemType), ShouldBeTrue)

		_, err = NewQUBOSession(QUBORequest{ProblemType: "maxcut"}, nil)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)

		_, err = NewQUBOSession(QUBORequest{Matrix: [][]float64{{1}}, Algorithm: "tabu"}, nil)
		So(errors.Is(err, ErrUnsupportedAlgorithm), ShouldBeTrue)

		_, err = NewQUBOSession(QUBORequest{
			Matrix:    [][]float64{{1}},
			Annealing: AnnealingParams{CoolingRate: 3},
		}, nil)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)
	})
}

func TestWorkflowSession(t *testing.T) {
	Convey("Given the three step chain", t, func() {
		Convey("When its execution time is annealed", func() {
			session, err := NewWorkflowSession(WorkflowRequest{
				Steps:     chainSteps(),
				Objective: "execution_time",
				Annealing: AnnealingParams{Iterations: 300, Temperature: 1},
			}, seededConfig(5))
			So(err, ShouldBeNil)

			result, err := session.Run(context.Background())
			So(err, ShouldBeNil)

			Convey("Then the unoptimised cost is the serial sum and the best is no worse", func() {
				So(result.InitialCost, ShouldAlmostEqual, 6, tolerance)
				So(result.BestCost, ShouldBeLessThan, result.InitialCost)
				So(result.ImprovementPct, ShouldBeGreaterThan, 0)
			})

			Convey("Then the plan is dependency ordered and consistent with the cost", func() {
				plan := result.BestSolution.(WorkflowPlan)
				So(ids(plan.Steps), ShouldResemble, []string{"A", "B", "C"})
				So(plan.ExecutionTime, ShouldAlmostEqual, result.BestCost, tolerance)
				So(plan.CriticalPath, ShouldResemble, []string{"A", "B", "C"})

				for _, step := range plan.Steps {
					So(step.ResourceAllocation, ShouldBeBetweenOrEqual, 1, 5)
				}
			})
		})

		Convey("When the genetic algorithm balances it", func() {
			session, err := NewWorkflowSession(WorkflowRequest{
				Steps:     chainSteps(),
				Objective: "balanced",
				Algorithm: "genetic",
				Genetic:   GeneticParams{PopulationSize: 10, Generations: 20},
			}, seededConfig(5))
			So(err, ShouldBeNil)

			result, _ := session.Run(context.Background())

			Convey("Then a complete plan comes back", func() {
				plan := result.BestSolution.(WorkflowPlan)
				So(len(plan.Steps), ShouldEqual, 3)
				So(ObjectiveBalanced.CostFunc(Constraints{})(plan.Steps), ShouldAlmostEqual, result.BestCost, tolerance)
				t.Log(spew.Sdump(plan))
			})
		})
	})

	Convey("Given a chain already at the resource cap", t, func() {
		steps := chainSteps()
		for i := range steps {
			steps[i].ResourceAllocation = 5
		}

		session, err := NewWorkflowSession(WorkflowRequest{
			Steps:     steps,
			Objective: "execution_time",
			Annealing: AnnealingParams{Iterations: 100, Temperature: 1},
		}, seededConfig(9))
		So(err, ShouldBeNil)

		result, err := session.Run(context.Background())
		So(err, ShouldBeNil)

		Convey("Then the initial cost is the state the annealer starts in", func() {
			So(result.InitialCost, ShouldAlmostEqual, ExecutionTime(steps, Constraints{}), tolerance)
			So(result.BestCost, ShouldBeLessThanOrEqualTo, result.InitialCost)
			So(result.ImprovementPct, ShouldBeGreaterThanOrEqualTo, 0)
		})
	})

	Convey("Given invalid workflow requests", t, func() {
		_, err := NewWorkflowSession(WorkflowRequest{Steps: chainSteps(), Objective: "cheapest"}, nil)
		So(errors.Is(err, ErrUnknownObjective), ShouldBeTrue)

		over := chainSteps()
		over[1].ResourceAllocation = 8
		_, err = NewWorkflowSession(WorkflowRequest{Steps: over}, seededConfig(5))
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)

		_, err = NewWorkflowSession(WorkflowRequest{
			Steps:       chainSteps(),
			Constraints: Constraints{MaxParallel: -1},
		}, nil)
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)

		var werr *WorkflowError
		_, err = NewWorkflowSession(WorkflowRequest{}, nil)
		So(errors.As(err, &werr), ShouldBeTrue)
		So(werr.Kind, ShouldEqual, WorkflowEmpty)
	})

	Convey("Given a cancelled context", t, func() {
		session, _ := NewWorkflowSession(WorkflowRequest{Steps: chainSteps()}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := session.Run(ctx)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
