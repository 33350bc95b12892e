package optimizer

import (
	"fmt"
	"sort"

	"fpl-optimizer/internal/catalog"
	"fpl-optimizer/internal/solver"
)

// ipVars holds the decision variables of one squad formulation. Players are
// kept in branch order (projected points descending, then element ID) so the
// solver reaches strong incumbents early; outputs are re-sorted canonically
// by the engine.
type ipVars struct {
	players []catalog.Player
	x       []solver.Var // squad membership
	s       []solver.Var // starter
	c       []solver.Var // captain
	extras  []solver.Var // transfer-hit slack bits
	prior   map[int]bool
}

// branchOrder returns the players sorted for branching: highest projection
// first, element ID as the deterministic tail.
func branchOrder(players []catalog.Player) []catalog.Player {
	ordered := make([]catalog.Player, len(players))
	copy(ordered, players)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ProjectedPoints != ordered[j].ProjectedPoints {
			return ordered[i].ProjectedPoints > ordered[j].ProjectedPoints
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// idRanks maps each element ID to its rank in canonical (ID ascending)
// order. Ranks feed the identifier tie-break expressions.
func idRanks(players []catalog.Player) map[int]int64 {
	ids := make([]int, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	sort.Ints(ids)
	ranks := make(map[int]int64, len(ids))
	for i, id := range ids {
		ranks[id] = int64(i)
	}
	return ranks
}

// buildSquadModel encodes the full squad-selection integer program: squad
// size, position quotas, team cap, budget (or transfer-aware cash flow),
// starting XI with formation ranges, captaincy, and the transfer-hit term
// when a prior state is supplied.
func buildSquadModel(players []catalog.Player, rules Rules, state *TeamState) (*solver.Model, *ipVars, error) {
	ordered := branchOrder(players)
	n := len(ordered)
	ranks := idRanks(ordered)

	m := solver.NewModel()
	v := &ipVars{
		players: ordered,
		x:       make([]solver.Var, n),
		s:       make([]solver.Var, n),
		c:       make([]solver.Var, n),
		prior:   make(map[int]bool),
	}
	if state != nil {
		for _, id := range state.SquadIDs {
			v.prior[id] = true
		}
	}

	// Interleaving x/s/c per player keeps the objective bound tight while
	// the squad is still being branched.
	for i, p := range ordered {
		v.x[i] = m.NewBool(fmt.Sprintf("x_%d", p.ID))
		v.s[i] = m.NewBool(fmt.Sprintf("s_%d", p.ID))
		v.c[i] = m.NewBool(fmt.Sprintf("c_%d", p.ID))
		m.AddImplication("starter_link", v.s[i], v.x[i])
		m.AddImplication("captain_link", v.c[i], v.s[i])
	}

	m.AddExactly("squad_size", v.x, int64(rules.SquadSize))

	for _, pos := range catalog.Positions {
		quota := rules.PositionQuotas[pos]
		var vars []solver.Var
		for i, p := range ordered {
			if p.Position == pos {
				vars = append(vars, v.x[i])
			}
		}
		if len(vars) < quota {
			return nil, nil, &InfeasibleError{
				Family: "position_quota",
				Detail: fmt.Sprintf("pool has %d %s players, quota requires %d", len(vars), pos, quota),
			}
		}
		if len(vars) > 0 {
			m.AddExactly(fmt.Sprintf("quota_%s", pos), vars, int64(quota))
		}
	}

	byTeam := make(map[int][]solver.Var)
	for i, p := range ordered {
		byTeam[p.Team] = append(byTeam[p.Team], v.x[i])
	}
	for team, vars := range byTeam {
		if len(vars) > rules.TeamCap {
			m.AddAtMost(fmt.Sprintf("team_cap_%d", team), vars, int64(rules.TeamCap))
		}
	}

	if state == nil {
		terms := make([]solver.Term, n)
		for i, p := range ordered {
			terms[i] = solver.Term{Var: v.x[i], Coef: int64(p.PriceTenths)}
		}
		m.AddLinear("budget", terms, 0, int64(rules.BudgetTenths))
	} else {
		addCashFlow(m, v, state)
	}

	addLineupConstraints(m, v.s, v.c, ordered, rules)

	obj := make([]solver.FloatTerm, 0, 2*n)
	for i, p := range ordered {
		obj = append(obj,
			solver.FloatTerm{Var: v.s[i], Coef: p.ProjectedPoints},
			solver.FloatTerm{Var: v.c[i], Coef: p.ProjectedPoints},
		)
	}

	if state != nil {
		obj = append(obj, addTransferHits(m, v, state, rules)...)
	}

	m.Maximize(obj)

	// Tie ordering: cheapest squad first, then lowest identifiers for the
	// squad, the XI, and the armband.
	price := make([]solver.Term, n)
	squadRank := make([]solver.Term, n)
	starterRank := make([]solver.Term, n)
	captainRank := make([]solver.Term, n)
	for i, p := range ordered {
		price[i] = solver.Term{Var: v.x[i], Coef: int64(p.PriceTenths)}
		squadRank[i] = solver.Term{Var: v.x[i], Coef: ranks[p.ID]}
		starterRank[i] = solver.Term{Var: v.s[i], Coef: ranks[p.ID]}
		captainRank[i] = solver.Term{Var: v.c[i], Coef: ranks[p.ID]}
	}
	m.AddTieBreak(price)
	m.AddTieBreak(squadRank)
	m.AddTieBreak(starterRank)
	m.AddTieBreak(captainRank)

	return m, v, nil
}

// addLineupConstraints encodes the starting-XI rules shared by the full
// solve and the fixed-squad lineup pick: XI size, exactly one starting
// goalkeeper, outfield formation ranges, exactly one captain.
func addLineupConstraints(m *solver.Model, s, c []solver.Var, players []catalog.Player, rules Rules) {
	m.AddExactly("starting_size", s, int64(rules.StartingSize))

	byPos := make(map[catalog.Position][]solver.Var)
	for i, p := range players {
		byPos[p.Position] = append(byPos[p.Position], s[i])
	}
	if vars := byPos[catalog.Goalkeeper]; len(vars) > 0 {
		m.AddExactly("starting_gk", vars, 1)
	}
	f := rules.Formation
	if vars := byPos[catalog.Defender]; len(vars) > 0 {
		m.AddBetween("formation_def", vars, int64(f.DefMin), int64(f.DefMax))
	}
	if vars := byPos[catalog.Midfielder]; len(vars) > 0 {
		m.AddBetween("formation_mid", vars, int64(f.MidMin), int64(f.MidMax))
	}
	if vars := byPos[catalog.Forward]; len(vars) > 0 {
		m.AddBetween("formation_fwd", vars, int64(f.FwdMin), int64(f.FwdMax))
	}

	m.AddExactly("captain", c, 1)
}

// addCashFlow encodes the transfer-aware budget: the cost of players bought
// must fit within the bank plus the proceeds of players sold, with sell
// prices following the half-profit rule.
func addCashFlow(m *solver.Model, v *ipVars, state *TeamState) {
	var terms []solver.Term
	proceeds := int64(state.BankTenths)
	for i, p := range v.players {
		if v.prior[p.ID] {
			sell := int64(sellPriceFor(p, state))
			// Keeping an owned player forgoes their sale: move the sell
			// value to the left side so the bound stays constant.
			terms = append(terms, solver.Term{Var: v.x[i], Coef: sell})
			proceeds += sell
		} else {
			terms = append(terms, solver.Term{Var: v.x[i], Coef: int64(p.PriceTenths)})
		}
	}
	m.AddLinear("cash_flow", terms, 0, proceeds)
}

// addTransferHits adds the extra-transfer slack bits and returns their
// objective penalty terms. Each bit beyond the free allowance costs
// rules.HitCost points; the count is soft, never a hard cap.
func addTransferHits(m *solver.Model, v *ipVars, state *TeamState, rules Rules) []solver.FloatTerm {
	priorTotal := len(state.SquadIDs)
	free := state.FreeTransfers
	need := priorTotal - free
	if need <= 0 {
		return nil
	}

	var keepTerms []solver.Term
	for i, p := range v.players {
		if v.prior[p.ID] {
			keepTerms = append(keepTerms, solver.Term{Var: v.x[i], Coef: 1})
		}
	}

	extras := make([]solver.Var, need)
	obj := make([]solver.FloatTerm, need)
	terms := make([]solver.Term, 0, len(keepTerms)+need)
	terms = append(terms, keepTerms...)
	for j := range extras {
		extras[j] = m.NewBool(fmt.Sprintf("extra_%d", j))
		terms = append(terms, solver.Term{Var: extras[j], Coef: 1})
		obj[j] = solver.FloatTerm{Var: extras[j], Coef: -rules.HitCost}
		if j > 0 {
			// Order the slack bits to kill symmetric duplicates.
			m.AddImplication("extra_order", extras[j], extras[j-1])
		}
	}
	// keeps + extras >= prior - free, i.e. extra transfers cover every out
	// beyond the allowance. Prior players missing from the pool are forced
	// outs and count through the constant.
	m.AddLinear("transfer_hits", terms, int64(need), int64(len(terms)))
	v.extras = extras
	return obj
}

// buildLineupModel encodes the XI-and-captain pick for a fixed squad.
func buildLineupModel(squad []catalog.Player, rules Rules) (*solver.Model, *ipVars) {
	ordered := branchOrder(squad)
	n := len(ordered)
	ranks := idRanks(ordered)

	m := solver.NewModel()
	v := &ipVars{
		players: ordered,
		s:       make([]solver.Var, n),
		c:       make([]solver.Var, n),
	}
	for i, p := range ordered {
		v.s[i] = m.NewBool(fmt.Sprintf("s_%d", p.ID))
		v.c[i] = m.NewBool(fmt.Sprintf("c_%d", p.ID))
		m.AddImplication("captain_link", v.c[i], v.s[i])
	}

	addLineupConstraints(m, v.s, v.c, ordered, rules)

	obj := make([]solver.FloatTerm, 0, 2*n)
	for i, p := range ordered {
		obj = append(obj,
			solver.FloatTerm{Var: v.s[i], Coef: p.ProjectedPoints},
			solver.FloatTerm{Var: v.c[i], Coef: p.ProjectedPoints},
		)
	}
	m.Maximize(obj)

	starterRank := make([]solver.Term, n)
	captainRank := make([]solver.Term, n)
	for i, p := range ordered {
		starterRank[i] = solver.Term{Var: v.s[i], Coef: ranks[p.ID]}
		captainRank[i] = solver.Term{Var: v.c[i], Coef: ranks[p.ID]}
	}
	m.AddTieBreak(starterRank)
	m.AddTieBreak(captainRank)

	return m, v
}

// sellPriceFor resolves the sell price of an owned player from the prior
// purchase map, assuming a purchase at the current price when the caller
// did not record one.
func sellPriceFor(p catalog.Player, state *TeamState) int {
	purchase, ok := state.PurchaseTenths[p.ID]
	if !ok {
		purchase = p.PriceTenths
	}
	return SellPriceTenths(purchase, p.PriceTenths)
}
