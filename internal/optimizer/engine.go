package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"fpl-optimizer/internal/catalog"
	"fpl-optimizer/internal/solver"
	"fpl-optimizer/pkg/logger"
)

// Engine formulates squad selection as a 0/1 integer program and delegates
// the search to a solver backend. Every solve is synchronous, side-effect
// free and independent; engines are safe for concurrent use.
type Engine struct {
	solver solver.Solver
	logger *logrus.Entry
}

// NewEngine creates an engine on the given backend, defaulting to the
// built-in branch-and-bound solver.
func NewEngine(s solver.Solver) *Engine {
	if s == nil {
		s = solver.NewBranchBound()
	}
	return &Engine{
		solver: s,
		logger: logger.WithService("engine"),
	}
}

// Solve picks the optimal squad, starting XI and captaincy for the player
// pool under the rules. The objective is the projected points of the XI with
// the captain counted twice.
func (e *Engine) Solve(ctx context.Context, players []catalog.Player, rules Rules) (*Result, error) {
	return e.solve(ctx, players, rules, nil)
}

// SolveWithTransfers is Solve with prior-squad continuity: the cash-flow
// budget replaces the plain ceiling and transfers beyond the free allowance
// are penalized in the objective.
func (e *Engine) SolveWithTransfers(ctx context.Context, players []catalog.Player, rules Rules, state *TeamState) (*Result, error) {
	if state == nil {
		return e.solve(ctx, players, rules, nil)
	}
	return e.solve(ctx, players, rules, state)
}

func (e *Engine) solve(ctx context.Context, players []catalog.Player, rules Rules, state *TeamState) (*Result, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	m, v, err := buildSquadModel(players, rules, state)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.applyTimeLimit(ctx, rules)
	defer cancel()

	start := time.Now()
	sol, err := e.solver.Solve(ctx, m)
	if err != nil {
		// Backend failures are internal, never reinterpreted as infeasible.
		return nil, fmt.Errorf("solver failure: %w", err)
	}

	switch sol.Status {
	case solver.StatusOptimal, solver.StatusFeasible:
		return e.extract(sol, v, rules, state, time.Since(start)), nil
	case solver.StatusInfeasible:
		return nil, e.diagnose(players, rules, state)
	case solver.StatusUnknown:
		return nil, fmt.Errorf("solve time limit expired before any feasible squad was found")
	default:
		return nil, fmt.Errorf("solver reported %s on a finite binary model", sol.Status)
	}
}

// PickLineup chooses the best legal XI and captaincy from a fixed squad,
// leaving the roster untouched.
func (e *Engine) PickLineup(ctx context.Context, squad []catalog.Player, rules Rules) (*Result, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if len(squad) != rules.SquadSize {
		return nil, fmt.Errorf("lineup pick requires exactly %d players, got %d", rules.SquadSize, len(squad))
	}

	m, v := buildLineupModel(squad, rules)

	ctx, cancel := e.applyTimeLimit(ctx, rules)
	defer cancel()

	start := time.Now()
	sol, err := e.solver.Solve(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("solver failure: %w", err)
	}

	switch sol.Status {
	case solver.StatusOptimal, solver.StatusFeasible:
		res := e.extract(sol, v, rules, nil, time.Since(start))
		res.Squad = Squad{Players: sortByID(squad)}
		res.Bench = benchOf(res.Squad, res.Lineup)
		return res, nil
	case solver.StatusInfeasible:
		return nil, &InfeasibleError{
			Family: "formation",
			Detail: "no legal starting XI exists for this squad under the formation ranges",
		}
	case solver.StatusUnknown:
		return nil, fmt.Errorf("solve time limit expired before any legal XI was found")
	default:
		return nil, fmt.Errorf("solver reported %s on a finite binary model", sol.Status)
	}
}

// applyTimeLimit bounds the solve by rules.SolveTimeLimit unless the caller
// already set an earlier deadline.
func (e *Engine) applyTimeLimit(ctx context.Context, rules Rules) (context.Context, context.CancelFunc) {
	if rules.SolveTimeLimit <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, rules.SolveTimeLimit)
}

func (e *Engine) extract(sol *solver.Solution, v *ipVars, rules Rules, state *TeamState, elapsed time.Duration) *Result {
	var squad, starters []catalog.Player
	captainID := 0
	for i, p := range v.players {
		if v.x != nil && !sol.Value(v.x[i]) {
			continue
		}
		if v.x != nil {
			squad = append(squad, p)
		}
		if sol.Value(v.s[i]) {
			starters = append(starters, p)
		}
		if sol.Value(v.c[i]) {
			captainID = p.ID
		}
	}

	extra := 0
	for _, ev := range v.extras {
		if sol.Value(ev) {
			extra++
		}
	}

	res := &Result{
		Status:    StatusOptimal,
		Squad:     Squad{Players: sortByID(squad)},
		Lineup:    Lineup{Starters: sortByID(starters)},
		Captaincy: Captaincy{CaptainID: captainID, ViceCaptainID: pickVice(starters, captainID)},
		Objective: sol.Objective,
		Nodes:     sol.Nodes,
		SolveTime: elapsed,
	}
	if sol.Status == solver.StatusFeasible {
		res.Status = StatusSuboptimalTimeout
	}
	if state != nil {
		res.ExtraTransfers = extra
		res.PenaltyPoints = rules.HitCost * float64(extra)
	}
	res.Bench = benchOf(res.Squad, res.Lineup)

	points := make([]float64, len(res.Lineup.Starters))
	for i, p := range res.Lineup.Starters {
		points[i] = p.ProjectedPoints
	}
	e.logger.WithFields(logrus.Fields{
		"status":          res.Status,
		"objective":       res.Objective,
		"xi_points":       floats.Sum(points),
		"squad_price":     res.Squad.TotalPriceTenths(),
		"extra_transfers": res.ExtraTransfers,
		"nodes":           res.Nodes,
		"elapsed":         elapsed.String(),
	}).Info("Squad solve complete")

	return res
}

// pickVice selects the vice-captain fallback: the highest-projected starter
// other than the captain, breaking ties by lower price then lower ID.
func pickVice(starters []catalog.Player, captainID int) int {
	viceID := 0
	var best catalog.Player
	for _, p := range starters {
		if p.ID == captainID {
			continue
		}
		if viceID == 0 || viceBetter(p, best) {
			best = p
			viceID = p.ID
		}
	}
	return viceID
}

func viceBetter(a, b catalog.Player) bool {
	if a.ProjectedPoints != b.ProjectedPoints {
		return a.ProjectedPoints > b.ProjectedPoints
	}
	if a.PriceTenths != b.PriceTenths {
		return a.PriceTenths < b.PriceTenths
	}
	return a.ID < b.ID
}

func sortByID(players []catalog.Player) []catalog.Player {
	out := make([]catalog.Player, len(players))
	copy(out, players)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func benchOf(squad Squad, lineup Lineup) []catalog.Player {
	starting := make(map[int]bool, len(lineup.Starters))
	for _, p := range lineup.Starters {
		starting[p.ID] = true
	}
	var bench []catalog.Player
	for _, p := range squad.Players {
		if !starting[p.ID] {
			bench = append(bench, p)
		}
	}
	return bench
}

// diagnose names the constraint family that makes the model unsatisfiable.
// Checks run cheapest-first; the budget check uses a lower bound (cheapest
// quota fill per position, team cap ignored), so a positive hit is a proof.
func (e *Engine) diagnose(players []catalog.Player, rules Rules, state *TeamState) *InfeasibleError {
	byPos := make(map[catalog.Position][]catalog.Player)
	for _, p := range players {
		byPos[p.Position] = append(byPos[p.Position], p)
	}
	for _, pos := range catalog.Positions {
		if len(byPos[pos]) < rules.PositionQuotas[pos] {
			return &InfeasibleError{
				Family: "position_quota",
				Detail: fmt.Sprintf("pool has %d %s players, quota requires %d", len(byPos[pos]), pos, rules.PositionQuotas[pos]),
			}
		}
	}

	byTeam := make(map[int]int)
	for _, p := range players {
		byTeam[p.Team]++
	}
	selectable := 0
	for _, count := range byTeam {
		if count > rules.TeamCap {
			count = rules.TeamCap
		}
		selectable += count
	}
	if selectable < rules.SquadSize {
		return &InfeasibleError{
			Family: "team_cap",
			Detail: fmt.Sprintf("team cap %d leaves only %d selectable players, squad requires %d", rules.TeamCap, selectable, rules.SquadSize),
		}
	}

	minCost := 0
	for _, pos := range catalog.Positions {
		prices := make([]int, 0, len(byPos[pos]))
		for _, p := range byPos[pos] {
			price := p.PriceTenths
			if state != nil && stateOwns(state, p.ID) {
				price = sellPriceFor(p, state)
			}
			prices = append(prices, price)
		}
		sort.Ints(prices)
		for i := 0; i < rules.PositionQuotas[pos]; i++ {
			minCost += prices[i]
		}
	}
	if state == nil {
		if minCost > rules.BudgetTenths {
			return &InfeasibleError{
				Family: "budget",
				Detail: fmt.Sprintf("budget %d is below the minimum legal squad cost %d", rules.BudgetTenths, minCost),
			}
		}
	} else {
		limit := state.BankTenths
		for _, p := range players {
			if stateOwns(state, p.ID) {
				limit += sellPriceFor(p, state)
			}
		}
		if minCost > limit {
			return &InfeasibleError{
				Family: "cash_flow",
				Detail: fmt.Sprintf("bank plus sale proceeds %d is below the minimum legal squad cost %d", limit, minCost),
			}
		}
	}

	return &InfeasibleError{
		Family: "constraints",
		Detail: "no assignment satisfies the combined constraint set",
	}
}

func stateOwns(state *TeamState, id int) bool {
	for _, owned := range state.SquadIDs {
		if owned == id {
			return true
		}
	}
	return false
}
