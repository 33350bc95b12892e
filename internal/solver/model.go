// Package solver provides a small declarative 0/1 integer-program model and
// an exact branch-and-bound backend behind a Solver interface, so the engine
// can be re-targeted to any conformant MIP backend.
package solver

import "context"

// Status reports the outcome of a solve.
type Status int

const (
	// StatusOptimal means the search space was exhausted and the incumbent
	// is proven best.
	StatusOptimal Status = iota
	// StatusFeasible means the deadline expired with an incumbent in hand;
	// the solution is valid but not proven optimal.
	StatusFeasible
	// StatusInfeasible means the search space was exhausted without finding
	// any assignment satisfying the constraints.
	StatusInfeasible
	// StatusUnknown means the deadline expired before any feasible
	// assignment was found.
	StatusUnknown
	// StatusUnbounded cannot occur for pure binary models and signals an
	// internal-consistency failure in the backend.
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnknown:
		return "unknown"
	case StatusUnbounded:
		return "unbounded"
	}
	return "invalid"
}

// Var identifies a binary decision variable within a model.
type Var int

// Term is an integer-coefficient entry of a linear constraint.
type Term struct {
	Var  Var
	Coef int64
}

// FloatTerm is a float-coefficient entry of the objective.
type FloatTerm struct {
	Var  Var
	Coef float64
}

type constraint struct {
	terms []Term
	lo    int64
	hi    int64
	name  string
}

// Model is a declarative 0/1 integer program: binary variables, two-sided
// linear constraints, a maximized float objective, and ordered integer
// tie-break expressions minimized lexicographically after the objective.
// Variable creation order is also the branch order, which together with the
// tie-breaks makes repeated solves on identical input bit-identical.
type Model struct {
	names     []string
	cons      []constraint
	obj       []FloatTerm
	tieBreaks [][]Term
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewBool adds a binary variable and returns its handle.
func (m *Model) NewBool(name string) Var {
	m.names = append(m.names, name)
	return Var(len(m.names) - 1)
}

// NumVars returns the number of variables in the model.
func (m *Model) NumVars() int {
	return len(m.names)
}

// AddLinear constrains lo <= sum(coef*var) <= hi.
func (m *Model) AddLinear(name string, terms []Term, lo, hi int64) {
	m.cons = append(m.cons, constraint{terms: terms, lo: lo, hi: hi, name: name})
}

// AddExactly constrains the sum of the variables to equal n.
func (m *Model) AddExactly(name string, vars []Var, n int64) {
	terms := make([]Term, len(vars))
	for i, v := range vars {
		terms[i] = Term{Var: v, Coef: 1}
	}
	m.AddLinear(name, terms, n, n)
}

// AddAtMost constrains the sum of the variables to at most n.
func (m *Model) AddAtMost(name string, vars []Var, n int64) {
	terms := make([]Term, len(vars))
	for i, v := range vars {
		terms[i] = Term{Var: v, Coef: 1}
	}
	m.AddLinear(name, terms, 0, n)
}

// AddBetween constrains the sum of the variables to [lo, hi].
func (m *Model) AddBetween(name string, vars []Var, lo, hi int64) {
	terms := make([]Term, len(vars))
	for i, v := range vars {
		terms[i] = Term{Var: v, Coef: 1}
	}
	m.AddLinear(name, terms, lo, hi)
}

// AddImplication constrains a <= b, i.e. a can be set only when b is set.
func (m *Model) AddImplication(name string, a, b Var) {
	m.AddLinear(name, []Term{{Var: a, Coef: 1}, {Var: b, Coef: -1}}, -1, 0)
}

// Maximize sets the objective to maximize.
func (m *Model) Maximize(terms []FloatTerm) {
	m.obj = terms
}

// AddTieBreak appends an integer expression minimized lexicographically
// among solutions with equal objective value, in registration order.
func (m *Model) AddTieBreak(terms []Term) {
	m.tieBreaks = append(m.tieBreaks, terms)
}

// Solution is the outcome of a solve. Values is indexed by Var and only
// meaningful for StatusOptimal and StatusFeasible.
type Solution struct {
	Status    Status
	Values    []bool
	Objective float64
	TieBreaks []int64
	Nodes     int64
}

// Value reports the assignment of v.
func (s *Solution) Value(v Var) bool {
	return s.Values[v]
}

// Solver solves a binary model, honoring the context deadline by returning
// the best incumbent found so far instead of blocking indefinitely.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}
