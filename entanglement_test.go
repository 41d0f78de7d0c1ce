package qoptim

import (
	"math/rand/v2"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func chromosome(n int, q Qubit) []Qubit {
	out := make([]Qubit, n)
	for i := range out {
		out[i] = q
	}
	return out
}

func TestEntangle(t *testing.T) {
	Convey("Given a pair of distinguishable chromosomes", t, func() {
		zero, one := NewQubit(1, 0), NewQubit(0, 1)
		rng := rand.New(rand.NewPCG(3, 4))

		Convey("When crossover always fires", func() {
			population := [][]Qubit{chromosome(6, zero), chromosome(6, one), chromosome(6, zero)}
			crossed := entangle(rng, population, 1)

			Convey("Then the heads stay and the tails are exchanged", func() {
				So(crossed, ShouldEqual, 1)
				So(population[0][0], ShouldResemble, zero)
				So(population[1][0], ShouldResemble, one)
				So(population[0][5], ShouldResemble, one)
				So(population[1][5], ShouldResemble, zero)

				for k := range 6 {
					So(population[0][k] != population[1][k], ShouldBeTrue)
				}
			})

			Convey("Then an unpaired individual is left alone", func() {
				So(population[2], ShouldResemble, chromosome(6, zero))
			})
		})

		Convey("When crossover never fires", func() {
			population := [][]Qubit{chromosome(4, zero), chromosome(4, one)}
			So(entangle(rng, population, 0), ShouldEqual, 0)
			So(population[0], ShouldResemble, chromosome(4, zero))
		})
	})
}

func TestDecohere(t *testing.T) {
	Convey("Given a population of |0⟩ qubits", t, func() {
		rng := rand.New(rand.NewPCG(1, 2))
		population := [][]Qubit{chromosome(5, NewQubit(1, 0)), chromosome(5, NewQubit(1, 0))}

		Convey("A mutation rate of zero changes nothing", func() {
			So(decohere(rng, population, 0), ShouldEqual, 0)
			So(population[1][4].ProbabilityOne(), ShouldEqual, 0.0)
		})

		Convey("A mutation rate of one swaps every amplitude pair", func() {
			So(decohere(rng, population, 1), ShouldEqual, 10)
			for _, individual := range population {
				for _, q := range individual {
					So(q.ProbabilityOne(), ShouldEqual, 1.0)
				}
			}
		})
	})
}
