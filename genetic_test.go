package qoptim

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func ones(bits []bool) float64 {
	var n float64
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}

func TestQubit(t *testing.T) {
	Convey("Given a freshly superposed qubit", t, func() {
		q := SuperposedQubit()

		Convey("Then both outcomes are equally likely", func() {
			So(q.ProbabilityOne(), ShouldAlmostEqual, 0.5, tolerance)
		})

		Convey("When it is rotated toward 1 repeatedly", func() {
			for range 100 {
				q.RotateToward(true, rotationStep)
			}

			Convey("Then it settles near |1⟩ without wrapping around", func() {
				So(q.ProbabilityOne(), ShouldBeGreaterThan, 0.9)
			})
		})

		Convey("When it is rotated toward 0 repeatedly", func() {
			for range 100 {
				q.RotateToward(false, rotationStep)
			}

			Convey("Then it settles near |0⟩", func() {
				So(q.ProbabilityOne(), ShouldBeLessThan, 0.1)
			})
		})

		Convey("When a rotation is applied the qubit stays normalised", func() {
			q.Rotate(0.3)
			alpha, beta := q.Amplitudes()
			So(sqAbs(alpha)+sqAbs(beta), ShouldAlmostEqual, 1, tolerance)
		})
	})

	Convey("Given raw amplitudes", t, func() {
		Convey("NewQubit normalises them", func() {
			So(NewQubit(3, 4).ProbabilityOne(), ShouldAlmostEqual, 16.0/25, tolerance)
		})

		Convey("A zero pair falls back to |0⟩", func() {
			So(NewQubit(0, 0).ProbabilityOne(), ShouldEqual, 0.0)
		})

		Convey("ApplyNot exchanges the outcome probabilities", func() {
			q := NewQubit(3, 4)
			q.ApplyNot()
			So(q.ProbabilityOne(), ShouldAlmostEqual, 9.0/25, tolerance)
		})

		Convey("Observe follows |β|²", func() {
			rng := rand.New(rand.NewPCG(9, 9))
			So(NewQubit(0, 1).Observe(rng), ShouldBeTrue)
			So(NewQubit(1, 0).Observe(rng), ShouldBeFalse)
		})
	})
}

func TestNewGeneticAlgorithm(t *testing.T) {
	Convey("Given out of range parameters", t, func() {
		cases := []func() error{
			func() error { _, err := NewGeneticAlgorithm(nil, 10, 4, 0.01, 0.7, 10, 1, true); return err },
			func() error { _, err := NewGeneticAlgorithm(ones, 0, 4, 0.01, 0.7, 10, 1, true); return err },
			func() error { _, err := NewGeneticAlgorithm(ones, 10, 0, 0.01, 0.7, 10, 1, true); return err },
			func() error { _, err := NewGeneticAlgorithm(ones, 10, 4, -1, 0.7, 10, 1, true); return err },
			func() error { _, err := NewGeneticAlgorithm(ones, 10, 4, 0.01, 2, 10, 1, true); return err },
			func() error { _, err := NewGeneticAlgorithm(ones, 10, 4, 0.01, 0.7, 0, 1, true); return err },
			func() error { _, err := NewGeneticAlgorithm(ones, 10, 4, 0.01, 0.7, 10, 0, true); return err },
		}

		Convey("Then construction fails with ErrInvalidParameter", func() {
			for _, c := range cases {
				So(errors.Is(c(), ErrInvalidParameter), ShouldBeTrue)
			}
		})
	})
}

func TestGeneticAlgorithmRun(t *testing.T) {
	Convey("Given a one-max fitness", t, func() {
		ga, err := NewGeneticAlgorithm(ones, 20, 12, 0.01, 0.7, 60, 1, true,
			WithRand(rand.New(rand.NewPCG(11, 17))))
		So(err, ShouldBeNil)

		run := ga.Run()

		Convey("Then one history entry is recorded per generation", func() {
			So(len(run.History), ShouldEqual, 60)
			So(run.Iterations, ShouldEqual, 60)
		})

		Convey("Then the best fitness is the best generation and matches its state", func() {
			best := math.Inf(-1)
			for _, h := range run.History {
				best = math.Max(best, h)
			}
			So(run.BestCost, ShouldEqual, best)
			So(ones(run.BestState), ShouldEqual, run.BestCost)
		})

		Convey("Then the population is driven toward the optimum", func() {
			So(run.BestCost, ShouldBeGreaterThanOrEqualTo, 10)
		})
	})

	Convey("Given the same fitness minimised", t, func() {
		ga, _ := NewGeneticAlgorithm(ones, 20, 12, 0.01, 0.7, 60, 1, false,
			WithRand(rand.New(rand.NewPCG(11, 17))))
		run := ga.Run()

		Convey("Then the best is the lowest generation best", func() {
			best := math.Inf(1)
			for _, h := range run.History {
				best = math.Min(best, h)
			}
			So(run.BestCost, ShouldEqual, best)
			So(run.BestCost, ShouldBeLessThanOrEqualTo, 2)
		})
	})

	Convey("Given several qubits per gene", t, func() {
		seen := 0
		fitness := func(bits []bool) float64 {
			seen = len(bits)
			return ones(bits)
		}

		ga, _ := NewGeneticAlgorithm(fitness, 4, 5, 0.01, 0.7, 2, 3, true)
		run := ga.Run()

		Convey("Then the fitness sees the flattened chromosome", func() {
			So(ga.ChromosomeLength(), ShouldEqual, 15)
			So(seen, ShouldEqual, 15)
			So(len(run.BestState), ShouldEqual, 15)
		})
	})
}
