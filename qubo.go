package qoptim

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ProblemType tags the problem families the QUBO encoder understands.
type ProblemType string

const (
	ProblemTSP       ProblemType = "tsp"
	ProblemMaxCut    ProblemType = "maxcut"
	ProblemPortfolio ProblemType = "portfolio"
	ProblemCustom    ProblemType = "custom"
)

func ParseProblemType(name string) (ProblemType, error) {
	switch ProblemType(strings.ToLower(strings.TrimSpace(name))) {
	case ProblemTSP:
		return ProblemTSP, nil
	case ProblemMaxCut, "max_cut":
		return ProblemMaxCut, nil
	case ProblemPortfolio:
		return ProblemPortfolio, nil
	case ProblemCustom:
		return ProblemCustom, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProblemType, name)
}

/*
QUBOMatrix holds the weights of Σ_i Σ_j Q[i][j]·x_i·x_j over binary x. Every
ordered pair is counted, so a symmetric matrix splits each pairwise weight
across Q[i][j] and Q[j][i].
*/
type QUBOMatrix struct {
	q *mat.Dense
}

// NewQUBOMatrix checks rows are square and copies them into a matrix.
func NewQUBOMatrix(rows [][]float64) (*QUBOMatrix, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrDimensionMismatch)
	}

	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), n)
		}
		data = append(data, row...)
	}

	return &QUBOMatrix{q: mat.NewDense(n, n, data)}, nil
}

func newZeroQUBO(n int) *QUBOMatrix {
	return &QUBOMatrix{q: mat.NewDense(n, n, nil)}
}

func (qm *QUBOMatrix) Size() int {
	n, _ := qm.q.Dims()
	return n
}

func (qm *QUBOMatrix) At(i, j int) float64 { return qm.q.At(i, j) }

// Dense exposes the underlying matrix, mostly for penalty hooks.
func (qm *QUBOMatrix) Dense() *mat.Dense { return qm.q }

func (qm *QUBOMatrix) add(i, j int, v float64) {
	qm.q.Set(i, j, qm.q.At(i, j)+v)
}

// Rows copies the matrix out as nested slices.
func (qm *QUBOMatrix) Rows() [][]float64 {
	n := qm.Size()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, qm.q)
	}
	return rows
}

// IsSymmetric reports whether Q equals its transpose within tol.
func (qm *QUBOMatrix) IsSymmetric(tol float64) bool {
	return mat.EqualApprox(qm.q, qm.q.T(), tol)
}

// Cost evaluates xᵀQx for a bit vector of the matrix's size.
func (qm *QUBOMatrix) Cost(bits []bool) float64 {
	x := mat.NewVecDense(len(bits), bitsToFloats(bits))
	return mat.Inner(x, qm.q, x)
}

// CostFunc wraps Cost for the optimizers, which see bits as []bool.
func (qm *QUBOMatrix) CostFunc() func([]bool) float64 {
	return qm.Cost
}

func bitsToFloats(bits []bool) []float64 {
	x := make([]float64, len(bits))
	for i, b := range bits {
		if b {
			x[i] = 1
		}
	}
	return x
}

/*
Problem is anything the QUBO encoder can turn into a matrix. The concrete
descriptors below are the supported families.
*/
type Problem interface {
	Type() ProblemType
}

// PenaltyTerm adds constraint weights to an encoded objective matrix.
type PenaltyTerm func(q *mat.Dense)

// MaxCutProblem partitions the nodes of a weighted undirected graph. The
// adjacency matrix must be symmetric.
type MaxCutProblem struct {
	Adjacency [][]float64 `json:"adjacency"`
}

/*
TSPProblem orders cities into a tour. Variable (city i, position p) lives at
index i·n+p. Only the distance objective is encoded; one-hot tour constraints
are supplied by the caller through Penalties.
*/
type TSPProblem struct {
	Distances [][]float64   `json:"distances"`
	Penalties []PenaltyTerm `json:"-"`
}

/*
PortfolioProblem selects a subset of assets. The objective is the negative
expected return plus RiskAversion times the covariance of the selection.
Budget or cardinality constraints are supplied through Penalties.
*/
type PortfolioProblem struct {
	Assets          []string      `json:"assets,omitempty"`
	ExpectedReturns []float64     `json:"expected_returns"`
	Covariance      [][]float64   `json:"covariance,omitempty"`
	RiskAversion    float64       `json:"risk_aversion"`
	Penalties       []PenaltyTerm `json:"-"`
}

// CustomProblem passes a caller-built matrix straight through.
type CustomProblem struct {
	Matrix [][]float64 `json:"qubo_matrix"`
}

func (MaxCutProblem) Type() ProblemType    { return ProblemMaxCut }
func (TSPProblem) Type() ProblemType       { return ProblemTSP }
func (PortfolioProblem) Type() ProblemType { return ProblemPortfolio }
func (CustomProblem) Type() ProblemType    { return ProblemCustom }

// Cut is a decoded MaxCut bipartition.
type Cut struct {
	Left   []int   `json:"left"`
	Right  []int   `json:"right"`
	Weight float64 `json:"weight"`
}

/*
Tour is a decoded TSP solution. Valid is false when the bits were not a
permutation matrix; Order is then repaired by dropping repeated cities and
appending the missing ones in index order.
*/
type Tour struct {
	Order  []int   `json:"order"`
	Valid  bool    `json:"valid"`
	Length float64 `json:"length"`
}

// Selection is a decoded portfolio.
type Selection struct {
	Indices        []int    `json:"indices"`
	Assets         []string `json:"assets,omitempty"`
	ExpectedReturn float64  `json:"expected_return"`
}

// Encoding pairs a QUBO matrix with the decoder for its bit vectors.
type Encoding struct {
	Type   ProblemType
	Matrix *QUBOMatrix
	Decode func(bits []bool) any
}

// Encode turns a problem descriptor into a QUBO matrix and a decoder.
func Encode(problem Problem) (*Encoding, error) {
	switch p := problem.(type) {
	case MaxCutProblem:
		return encodeMaxCut(p)
	case *MaxCutProblem:
		if p == nil {
			return nil, fmt.Errorf("%w: nil *MaxCutProblem", ErrUnsupportedProblemType)
		}
		return encodeMaxCut(*p)
	case TSPProblem:
		return encodeTSP(p)
	case *TSPProblem:
		if p == nil {
			return nil, fmt.Errorf("%w: nil *TSPProblem", ErrUnsupportedProblemType)
		}
		return encodeTSP(*p)
	case PortfolioProblem:
		return encodePortfolio(p)
	case *PortfolioProblem:
		if p == nil {
			return nil, fmt.Errorf("%w: nil *PortfolioProblem", ErrUnsupportedProblemType)
		}
		return encodePortfolio(*p)
	case CustomProblem:
		return encodeCustom(p)
	case *CustomProblem:
		if p == nil {
			return nil, fmt.Errorf("%w: nil *CustomProblem", ErrUnsupportedProblemType)
		}
		return encodeCustom(*p)
	case nil:
		return nil, fmt.Errorf("%w: nil problem", ErrUnsupportedProblemType)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProblemType, problem.Type())
}

/*
encodeMaxCut spreads every edge weight over both endpoint diagonals (A/2 per
ordered pair) and the off-diagonal pair, signed so that a bipartition's energy
is the negative of its cut weight: the diagonal carries -A/2 and the
off-diagonal +A, the negation of the textbook +A/2 and -A form. The minimum
energy is the maximum cut, reported as a negative number.
*/
func encodeMaxCut(p MaxCutProblem) (*Encoding, error) {
	adj, err := NewQUBOMatrix(p.Adjacency)
	if err != nil {
		return nil, err
	}

	if !adj.IsSymmetric(1e-9) {
		return nil, invalidParam("maxcut adjacency must be symmetric")
	}

	n := adj.Size()
	qm := newZeroQUBO(n)
	for i := range n {
		for j := range n {
			w := adj.At(i, j)
			if i == j || w == 0 {
				continue
			}
			qm.add(i, i, -w/2)
			qm.add(j, j, -w/2)
			qm.add(i, j, w)
		}
	}

	decode := func(bits []bool) any {
		cut := Cut{Left: []int{}, Right: []int{}}
		for i := range n {
			if bit(bits, i) {
				cut.Right = append(cut.Right, i)
			} else {
				cut.Left = append(cut.Left, i)
			}
		}
		for i := range n {
			for j := i + 1; j < n; j++ {
				if bit(bits, i) != bit(bits, j) {
					cut.Weight += adj.At(i, j)
				}
			}
		}
		return cut
	}

	return &Encoding{Type: ProblemMaxCut, Matrix: qm, Decode: decode}, nil
}

func encodeTSP(p TSPProblem) (*Encoding, error) {
	dist, err := NewQUBOMatrix(p.Distances)
	if err != nil {
		return nil, err
	}

	n := dist.Size()
	qm := newZeroQUBO(n * n)
	for i := range n {
		for j := range n {
			if i == j {
				continue
			}
			d := dist.At(i, j)
			for pos := range n {
				a, b := i*n+pos, j*n+(pos+1)%n
				qm.add(a, b, d/2)
				qm.add(b, a, d/2)
			}
		}
	}

	for _, penalty := range p.Penalties {
		penalty(qm.q)
	}

	decode := func(bits []bool) any {
		return decodeTour(bits, dist)
	}

	return &Encoding{Type: ProblemTSP, Matrix: qm, Decode: decode}, nil
}

func decodeTour(bits []bool, dist *QUBOMatrix) Tour {
	n := dist.Size()
	tour := Tour{Order: make([]int, 0, n), Valid: true}
	seen := make([]bool, n)

	for pos := range n {
		placed := -1
		for city := range n {
			if !bit(bits, city*n+pos) {
				continue
			}
			if placed >= 0 {
				tour.Valid = false
				continue
			}
			placed = city
		}

		switch {
		case placed < 0:
			tour.Valid = false
		case seen[placed]:
			tour.Valid = false
		default:
			seen[placed] = true
			tour.Order = append(tour.Order, placed)
		}
	}

	for city := range n {
		if !seen[city] {
			tour.Order = append(tour.Order, city)
		}
	}

	for k := range tour.Order {
		tour.Length += dist.At(tour.Order[k], tour.Order[(k+1)%n])
	}

	return tour
}

func encodePortfolio(p PortfolioProblem) (*Encoding, error) {
	n := len(p.ExpectedReturns)
	if n == 0 {
		return nil, fmt.Errorf("%w: no expected returns", ErrDimensionMismatch)
	}
	if len(p.Assets) > 0 && len(p.Assets) != n {
		return nil, fmt.Errorf("%w: %d assets for %d returns", ErrDimensionMismatch, len(p.Assets), n)
	}

	qm := newZeroQUBO(n)
	for i, mu := range p.ExpectedReturns {
		qm.add(i, i, -mu)
	}

	if p.Covariance != nil {
		cov, err := NewQUBOMatrix(p.Covariance)
		if err != nil {
			return nil, err
		}
		if cov.Size() != n {
			return nil, fmt.Errorf("%w: covariance is %dx%d for %d assets", ErrDimensionMismatch, cov.Size(), cov.Size(), n)
		}
		var risk mat.Dense
		risk.Scale(p.RiskAversion, cov.q)
		qm.q.Add(qm.q, &risk)
	}

	for _, penalty := range p.Penalties {
		penalty(qm.q)
	}

	decode := func(bits []bool) any {
		sel := Selection{Indices: []int{}}
		for i := range n {
			if !bit(bits, i) {
				continue
			}
			sel.Indices = append(sel.Indices, i)
			sel.ExpectedReturn += p.ExpectedReturns[i]
			if len(p.Assets) > 0 {
				sel.Assets = append(sel.Assets, p.Assets[i])
			}
		}
		return sel
	}

	return &Encoding{Type: ProblemPortfolio, Matrix: qm, Decode: decode}, nil
}

func encodeCustom(p CustomProblem) (*Encoding, error) {
	qm, err := NewQUBOMatrix(p.Matrix)
	if err != nil {
		return nil, err
	}

	decode := func(bits []bool) any {
		out := make([]int, len(bits))
		for i, b := range bits {
			if b {
				out[i] = 1
			}
		}
		return out
	}

	return &Encoding{Type: ProblemCustom, Matrix: qm, Decode: decode}, nil
}

// BruteForce enumerates every assignment of a small QUBO. It is meant for
// checking optimizer output and refuses more than 20 variables.
func BruteForce(qm *QUBOMatrix) ([]bool, float64, error) {
	n := qm.Size()
	if n > 20 {
		return nil, 0, invalidParam("brute force over %d variables", n)
	}

	best := make([]bool, n)
	bestCost := qm.Cost(best)
	bits := make([]bool, n)

	for mask := 1; mask < 1<<n; mask++ {
		for i := range bits {
			bits[i] = mask&(1<<i) != 0
		}
		if c := qm.Cost(bits); c < bestCost {
			bestCost = c
			copy(best, bits)
		}
	}

	return best, bestCost, nil
}

func bit(bits []bool, i int) bool {
	return i < len(bits) && bits[i]
}
