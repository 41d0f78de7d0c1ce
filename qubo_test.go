package qoptim

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	. "github.com/smartystreets/goconvey/convey"
)

func squareGraph() [][]float64 {
	// 0-1-2-3-0 cycle with unit weights
	return [][]float64{
		{0, 1, 0, 1},
		{1, 0, 1, 0},
		{0, 1, 0, 1},
		{1, 0, 1, 0},
	}
}

func TestNewQUBOMatrix(t *testing.T) {
	Convey("Given malformed matrices", t, func() {
		_, err := NewQUBOMatrix(nil)
		So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)

		_, err = NewQUBOMatrix([][]float64{{1, 2}, {3}})
		So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)
	})

	Convey("Given a square matrix", t, func() {
		qm, err := NewQUBOMatrix([][]float64{{1, 2}, {3, 4}})
		So(err, ShouldBeNil)

		Convey("Then every ordered pair contributes to the cost", func() {
			So(qm.Cost([]bool{false, false}), ShouldEqual, 0.0)
			So(qm.Cost([]bool{true, false}), ShouldEqual, 1.0)
			So(qm.Cost([]bool{true, true}), ShouldEqual, 10.0)
			So(qm.IsSymmetric(0), ShouldBeFalse)
			So(qm.Rows(), ShouldResemble, [][]float64{{1, 2}, {3, 4}})
		})
	})
}

func TestEncodeMaxCut(t *testing.T) {
	Convey("Given a four node cycle", t, func() {
		enc, err := Encode(MaxCutProblem{Adjacency: squareGraph()})
		So(err, ShouldBeNil)
		So(enc.Type, ShouldEqual, ProblemMaxCut)
		So(enc.Matrix.IsSymmetric(1e-12), ShouldBeTrue)

		Convey("Then each bipartition's energy is minus its cut weight", func() {
			for mask := range 16 {
				bits := []bool{mask&1 != 0, mask&2 != 0, mask&4 != 0, mask&8 != 0}
				cut := enc.Decode(bits).(Cut)
				So(enc.Matrix.Cost(bits), ShouldAlmostEqual, -cut.Weight, tolerance)
			}
		})

		Convey("Then the ground state is the alternating cut", func() {
			best, energy, err := BruteForce(enc.Matrix)
			So(err, ShouldBeNil)
			So(energy, ShouldAlmostEqual, -4, tolerance)

			cut := enc.Decode(best).(Cut)
			So(cut.Weight, ShouldEqual, 4.0)
			So(len(cut.Left), ShouldEqual, 2)
		})
	})

	Convey("Given an asymmetric adjacency", t, func() {
		_, err := Encode(&MaxCutProblem{Adjacency: [][]float64{{0, 1}, {0, 0}}})
		So(errors.Is(err, ErrInvalidParameter), ShouldBeTrue)
	})
}

func TestEncodeTSP(t *testing.T) {
	Convey("Given three cities", t, func() {
		dist := [][]float64{
			{0, 1, 2},
			{1, 0, 3},
			{2, 3, 0},
		}
		enc, err := Encode(TSPProblem{Distances: dist})
		So(err, ShouldBeNil)
		So(enc.Matrix.Size(), ShouldEqual, 9)

		// city i at position p is variable i*3+p; tour 0 -> 1 -> 2
		bits := make([]bool, 9)
		bits[0*3+0], bits[1*3+1], bits[2*3+2] = true, true, true

		Convey("Then a valid tour's energy is its length", func() {
			tour := enc.Decode(bits).(Tour)
			So(tour.Valid, ShouldBeTrue)
			So(tour.Order, ShouldResemble, []int{0, 1, 2})
			So(tour.Length, ShouldEqual, 6.0)
			So(enc.Matrix.Cost(bits), ShouldAlmostEqual, 6, tolerance)
		})

		Convey("Then an invalid assignment is repaired into a tour and flagged", func() {
			tour := enc.Decode(make([]bool, 9)).(Tour)
			So(tour.Valid, ShouldBeFalse)
			So(tour.Order, ShouldResemble, []int{0, 1, 2})
		})

		Convey("Then penalty hooks run on the finished matrix", func() {
			hooked, _ := Encode(TSPProblem{
				Distances: dist,
				Penalties: []PenaltyTerm{func(q *mat.Dense) { q.Set(0, 0, q.At(0, 0)+5) }},
			})
			So(hooked.Matrix.At(0, 0), ShouldEqual, 5.0)
		})
	})
}

func TestEncodePortfolio(t *testing.T) {
	Convey("Given two assets", t, func() {
		enc, err := Encode(PortfolioProblem{
			Assets:          []string{"A", "B"},
			ExpectedReturns: []float64{0.1, 0.2},
			Covariance:      [][]float64{{0.04, 0.01}, {0.01, 0.09}},
			RiskAversion:    2,
		})
		So(err, ShouldBeNil)

		Convey("Then returns reward and covariance penalises", func() {
			So(enc.Matrix.At(0, 0), ShouldAlmostEqual, -0.1+0.08, tolerance)
			So(enc.Matrix.At(0, 1), ShouldAlmostEqual, 0.02, tolerance)

			sel := enc.Decode([]bool{false, true}).(Selection)
			So(sel.Indices, ShouldResemble, []int{1})
			So(sel.Assets, ShouldResemble, []string{"B"})
			So(sel.ExpectedReturn, ShouldAlmostEqual, 0.2, tolerance)
		})
	})

	Convey("Given mismatched inputs", t, func() {
		_, err := Encode(PortfolioProblem{ExpectedReturns: []float64{0.1}, Covariance: [][]float64{{1, 0}, {0, 1}}})
		So(errors.Is(err, ErrDimensionMismatch), ShouldBeTrue)
	})
}

func TestEncodeCustom(t *testing.T) {
	Convey("Given a custom matrix", t, func() {
		enc, err := Encode(CustomProblem{Matrix: [][]float64{{-1, 0}, {0, 2}}})
		So(err, ShouldBeNil)

		Convey("Then it passes through and decodes to raw bits", func() {
			So(enc.Matrix.At(1, 1), ShouldEqual, 2.0)
			So(enc.Decode([]bool{true, false}), ShouldResemble, []int{1, 0})
		})
	})

	Convey("Given problem type names", t, func() {
		pt, err := ParseProblemType("MaxCut")
		So(err, ShouldBeNil)
		So(pt, ShouldEqual, ProblemMaxCut)

		_, err = ParseProblemType("knapsack")
		So(errors.Is(err, ErrUnsupportedProblemType), ShouldBeTrue)
	})

	Convey("Given nil problem pointers", t, func() {
		for _, problem := range []Problem{
			(*MaxCutProblem)(nil),
			(*TSPProblem)(nil),
			(*PortfolioProblem)(nil),
			(*CustomProblem)(nil),
			nil,
		} {
			enc, err := Encode(problem)
			So(enc, ShouldBeNil)
			So(errors.Is(err, ErrUnsupportedProblemType), ShouldBeTrue)
		}
	})
}
