package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fpl-optimizer/pkg/logger"
)

// BranchBound is an exact depth-first branch-and-bound backend. Branching
// follows variable creation order, value 1 first; pruning uses per-constraint
// reachability bounds and an optimistic objective bound. Equal-objective
// branches are never pruned so the tie-break ordering is exact.
type BranchBound struct {
	logger *logrus.Entry

	// CheckInterval is how many nodes to expand between deadline checks.
	CheckInterval int64
}

// NewBranchBound creates a branch-and-bound solver.
func NewBranchBound() *BranchBound {
	return &BranchBound{
		logger:        logger.WithService("solver"),
		CheckInterval: 2048,
	}
}

type varLink struct {
	con  int
	coef int64
}

type search struct {
	model *Model

	assigned []int8 // -1 unset, 0, 1
	links    [][]varLink

	conSum []int64 // contribution of fixed vars
	conPos []int64 // positive coefficients still unfixed
	conNeg []int64 // negative coefficients still unfixed

	objCoef      []float64
	objFixed     float64
	objRemaining float64 // sum of positive objective coefficients unfixed

	tbCoef  [][]int64 // [level][var]
	tbFixed []int64

	best     *Solution
	hasBest  bool
	nodes    int64
	deadline time.Time
	hasDL    bool
	timedOut bool
	interval int64
}

// Solve runs the search. A context deadline bounds the solve; on expiry the
// best incumbent so far is returned with StatusFeasible (or StatusUnknown if
// none was found yet).
func (b *BranchBound) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if m == nil {
		return nil, fmt.Errorf("solver: nil model")
	}
	for ci, c := range m.cons {
		if len(c.terms) == 0 {
			return nil, fmt.Errorf("solver: constraint %d (%s) has no terms", ci, c.name)
		}
		if c.lo > c.hi {
			return nil, fmt.Errorf("solver: constraint %d (%s) has lo %d > hi %d", ci, c.name, c.lo, c.hi)
		}
	}

	n := m.NumVars()
	s := &search{
		model:    m,
		assigned: make([]int8, n),
		links:    make([][]varLink, n),
		conSum:   make([]int64, len(m.cons)),
		conPos:   make([]int64, len(m.cons)),
		conNeg:   make([]int64, len(m.cons)),
		objCoef:  make([]float64, n),
		tbCoef:   make([][]int64, len(m.tieBreaks)),
		tbFixed:  make([]int64, len(m.tieBreaks)),
		interval: b.CheckInterval,
	}
	for i := range s.assigned {
		s.assigned[i] = -1
	}
	for ci, c := range m.cons {
		for _, t := range c.terms {
			s.links[t.Var] = append(s.links[t.Var], varLink{con: ci, coef: t.Coef})
			if t.Coef > 0 {
				s.conPos[ci] += t.Coef
			} else {
				s.conNeg[ci] += t.Coef
			}
		}
	}
	for _, t := range m.obj {
		s.objCoef[t.Var] += t.Coef
	}
	for _, c := range s.objCoef {
		if c > 0 {
			s.objRemaining += c
		}
	}
	for li, terms := range m.tieBreaks {
		s.tbCoef[li] = make([]int64, n)
		for _, t := range terms {
			s.tbCoef[li][t.Var] += t.Coef
		}
	}
	if dl, ok := ctx.Deadline(); ok {
		s.deadline = dl
		s.hasDL = true
	}

	start := time.Now()
	if ctx.Err() != nil || (s.hasDL && !time.Now().Before(s.deadline)) {
		s.timedOut = true
	} else {
		s.dfs(ctx, 0)
	}

	sol := &Solution{Nodes: s.nodes}
	switch {
	case s.timedOut && s.hasBest:
		sol.Status = StatusFeasible
	case s.timedOut:
		sol.Status = StatusUnknown
	case s.hasBest:
		sol.Status = StatusOptimal
	default:
		sol.Status = StatusInfeasible
	}
	if s.hasBest {
		sol.Values = s.best.Values
		sol.Objective = s.best.Objective
		sol.TieBreaks = s.best.TieBreaks
	}

	b.logger.WithFields(logrus.Fields{
		"status":    sol.Status.String(),
		"vars":      n,
		"cons":      len(m.cons),
		"nodes":     s.nodes,
		"objective": sol.Objective,
		"elapsed":   time.Since(start).String(),
	}).Debug("Solve finished")

	return sol, nil
}

func (s *search) dfs(ctx context.Context, idx int) {
	if s.timedOut {
		return
	}
	s.nodes++
	if s.nodes%s.interval == 0 {
		if ctx.Err() != nil || (s.hasDL && time.Now().After(s.deadline)) {
			s.timedOut = true
			return
		}
	}

	if idx == len(s.assigned) {
		s.recordLeaf()
		return
	}

	// Optimistic bound: everything unfixed with a positive coefficient set
	// to 1. Strict comparison keeps equal-objective branches alive for the
	// tie-break ordering.
	if s.hasBest && s.objFixed+s.objRemaining < s.best.Objective {
		return
	}

	for _, val := range [2]int8{1, 0} {
		if s.assign(idx, val) {
			s.dfs(ctx, idx+1)
		}
		s.unassign(idx, val)
		if s.timedOut {
			return
		}
	}
}

// assign fixes variable idx to val and reports whether every constraint
// touching it can still be satisfied.
func (s *search) assign(idx int, val int8) bool {
	s.assigned[idx] = val
	feasible := true
	for _, l := range s.links[idx] {
		if l.coef > 0 {
			s.conPos[l.con] -= l.coef
		} else {
			s.conNeg[l.con] -= l.coef
		}
		if val == 1 {
			s.conSum[l.con] += l.coef
		}
		c := &s.model.cons[l.con]
		if s.conSum[l.con]+s.conNeg[l.con] > c.hi || s.conSum[l.con]+s.conPos[l.con] < c.lo {
			feasible = false
		}
	}
	if c := s.objCoef[idx]; c > 0 {
		s.objRemaining -= c
	}
	if val == 1 {
		s.objFixed += s.objCoef[idx]
		for li := range s.tbFixed {
			s.tbFixed[li] += s.tbCoef[li][idx]
		}
	}
	return feasible
}

func (s *search) unassign(idx int, val int8) {
	for _, l := range s.links[idx] {
		if l.coef > 0 {
			s.conPos[l.con] += l.coef
		} else {
			s.conNeg[l.con] += l.coef
		}
		if val == 1 {
			s.conSum[l.con] -= l.coef
		}
	}
	if c := s.objCoef[idx]; c > 0 {
		s.objRemaining += c
	}
	if val == 1 {
		s.objFixed -= s.objCoef[idx]
		for li := range s.tbFixed {
			s.tbFixed[li] -= s.tbCoef[li][idx]
		}
	}
	s.assigned[idx] = -1
}

// recordLeaf keeps the assignment if it beats the incumbent on objective,
// then lexicographically lower tie-break expressions. Comparisons are exact;
// identical inputs yield identical floats, so no epsilon is involved.
func (s *search) recordLeaf() {
	if s.hasBest {
		if s.objFixed < s.best.Objective {
			return
		}
		if s.objFixed == s.best.Objective && !tbLess(s.tbFixed, s.best.TieBreaks) {
			return
		}
	}
	values := make([]bool, len(s.assigned))
	for i, a := range s.assigned {
		values[i] = a == 1
	}
	tb := make([]int64, len(s.tbFixed))
	copy(tb, s.tbFixed)
	s.best = &Solution{Values: values, Objective: s.objFixed, TieBreaks: tb}
	s.hasBest = true
}

func tbLess(a, b []int64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
