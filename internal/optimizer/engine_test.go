package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fpl-optimizer/internal/catalog"
)

// testPool is a 19-player pool (3 GK, 6 DEF, 6 MID, 4 FWD) with a unique
// optimum under the default rules, so solves are assertable exactly.
func testPool() []catalog.Player {
	return []catalog.Player{
		{ID: 1, Name: "GK A", Position: catalog.Goalkeeper, Team: 1, PriceTenths: 45, ProjectedPoints: 3.0, Available: true},
		{ID: 2, Name: "GK B", Position: catalog.Goalkeeper, Team: 2, PriceTenths: 50, ProjectedPoints: 3.5, Available: true},
		{ID: 3, Name: "GK C", Position: catalog.Goalkeeper, Team: 3, PriceTenths: 40, ProjectedPoints: 2.0, Available: true},

		{ID: 11, Name: "DEF A", Position: catalog.Defender, Team: 1, PriceTenths: 45, ProjectedPoints: 3.0, Available: true},
		{ID: 12, Name: "DEF B", Position: catalog.Defender, Team: 2, PriceTenths: 50, ProjectedPoints: 3.5, Available: true},
		{ID: 13, Name: "DEF C", Position: catalog.Defender, Team: 3, PriceTenths: 55, ProjectedPoints: 4.0, Available: true},
		{ID: 14, Name: "DEF D", Position: catalog.Defender, Team: 4, PriceTenths: 60, ProjectedPoints: 4.5, Available: true},
		{ID: 15, Name: "DEF E", Position: catalog.Defender, Team: 5, PriceTenths: 40, ProjectedPoints: 2.5, Available: true},
		{ID: 16, Name: "DEF F", Position: catalog.Defender, Team: 6, PriceTenths: 40, ProjectedPoints: 2.0, Available: true},

		{ID: 21, Name: "MID A", Position: catalog.Midfielder, Team: 1, PriceTenths: 80, ProjectedPoints: 6.0, Available: true},
		{ID: 22, Name: "MID B", Position: catalog.Midfielder, Team: 2, PriceTenths: 85, ProjectedPoints: 6.5, Available: true},
		{ID: 23, Name: "MID C", Position: catalog.Midfielder, Team: 3, PriceTenths: 90, ProjectedPoints: 7.0, Available: true},
		{ID: 24, Name: "MID D", Position: catalog.Midfielder, Team: 4, PriceTenths: 75, ProjectedPoints: 5.5, Available: true},
		{ID: 25, Name: "MID E", Position: catalog.Midfielder, Team: 5, PriceTenths: 70, ProjectedPoints: 5.0, Available: true},
		{ID: 26, Name: "MID F", Position: catalog.Midfielder, Team: 6, PriceTenths: 65, ProjectedPoints: 4.0, Available: true},

		{ID: 31, Name: "FWD A", Position: catalog.Forward, Team: 5, PriceTenths: 90, ProjectedPoints: 7.5, Available: true},
		{ID: 32, Name: "FWD B", Position: catalog.Forward, Team: 6, PriceTenths: 85, ProjectedPoints: 7.0, Available: true},
		{ID: 33, Name: "FWD C", Position: catalog.Forward, Team: 7, PriceTenths: 80, ProjectedPoints: 6.0, Available: true},
		{ID: 34, Name: "FWD D", Position: catalog.Forward, Team: 7, PriceTenths: 60, ProjectedPoints: 4.0, Available: true},
	}
}

func TestSolve_OptimalSquad(t *testing.T) {
	engine := NewEngine(nil)

	res, err := engine.Solve(context.Background(), testPool(), DefaultRules())
	require.NoError(t, err)

	assert.Equal(t, StatusOptimal, res.Status)
	assert.Equal(t, []int{2, 3, 12, 13, 14, 15, 16, 21, 22, 23, 24, 26, 31, 32, 33}, res.Squad.IDs())

	// Best XI is the 3-4-3: top keeper, DEF 12/13/14, MID 21-24, all three
	// premium forwards.
	xi := make([]int, len(res.Lineup.Starters))
	for i, p := range res.Lineup.Starters {
		xi[i] = p.ID
	}
	assert.Equal(t, []int{2, 12, 13, 14, 21, 22, 23, 24, 31, 32, 33}, xi)

	assert.Equal(t, 31, res.Captaincy.CaptainID)
	assert.Equal(t, 32, res.Captaincy.ViceCaptainID)
	assert.InDelta(t, 68.5, res.Objective, 1e-9)
	assert.Equal(t, 985, res.Squad.TotalPriceTenths())
	assert.Len(t, res.Bench, 4)
	assert.Zero(t, res.ExtraTransfers)
	assert.Zero(t, res.PenaltyPoints)
}

func TestSolve_Deterministic(t *testing.T) {
	engine := NewEngine(nil)

	first, err := engine.Solve(context.Background(), testPool(), DefaultRules())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := engine.Solve(context.Background(), testPool(), DefaultRules())
		require.NoError(t, err)

		// Wall-clock fields aside, repeated solves are bit-identical.
		first.SolveTime = 0
		again.SolveTime = 0
		assert.Equal(t, first, again)
	}
}

func TestSolve_BudgetMonotonicity(t *testing.T) {
	engine := NewEngine(nil)

	budgets := []int{920, 950, 1000, 1100}
	prev := -1.0
	for _, budget := range budgets {
		rules := DefaultRules()
		rules.BudgetTenths = budget
		res, err := engine.Solve(context.Background(), testPool(), rules)
		require.NoError(t, err, "budget %d", budget)
		assert.GreaterOrEqual(t, res.Objective, prev, "budget %d", budget)
		assert.LessOrEqual(t, res.Squad.TotalPriceTenths(), budget)
		prev = res.Objective
	}

	// Slack beyond the full-price optimum changes nothing.
	assert.InDelta(t, 68.5, prev, 1e-9)
}

func TestSolve_BudgetInfeasible(t *testing.T) {
	engine := NewEngine(nil)

	// The cheapest legal squad in the pool costs 915 tenths.
	rules := DefaultRules()
	rules.BudgetTenths = 900

	_, err := engine.Solve(context.Background(), testPool(), rules)
	var infeasible *InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, "budget", infeasible.Family)
}

func TestSolve_CheapKeepersCannotRescueBudget(t *testing.T) {
	engine := NewEngine(nil)

	// Four bargain keepers, but every outfield player costs 100: the
	// cheapest legal squad runs 40+45 + 13*100, far past the 1000 ceiling.
	var pool []catalog.Player
	id := 1
	team := 1
	add := func(pos catalog.Position, prices []int) {
		for _, price := range prices {
			pool = append(pool, catalog.Player{
				ID: id, Position: pos, Team: team, PriceTenths: price, ProjectedPoints: 4.0, Available: true,
			})
			id++
			team++
		}
	}
	add(catalog.Goalkeeper, []int{40, 45, 50, 55})
	add(catalog.Defender, []int{100, 100, 100, 100, 100})
	add(catalog.Midfielder, []int{100, 100, 100, 100, 100})
	add(catalog.Forward, []int{100, 100, 100})

	_, err := engine.Solve(context.Background(), pool, DefaultRules())
	var infeasible *InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, "budget", infeasible.Family)
}

func TestSolve_QuotaInfeasible(t *testing.T) {
	engine := NewEngine(nil)

	// Drop every goalkeeper but one; the quota of two cannot be met.
	var pool []catalog.Player
	for _, p := range testPool() {
		if p.Position == catalog.Goalkeeper && p.ID != 1 {
			continue
		}
		pool = append(pool, p)
	}

	_, err := engine.Solve(context.Background(), pool, DefaultRules())
	var infeasible *InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, "position_quota", infeasible.Family)
}

func TestSolve_TeamCapInfeasible(t *testing.T) {
	engine := NewEngine(nil)

	// Squeeze the whole pool into three clubs: the cap of three per club
	// leaves at most nine selectable players against a squad of fifteen.
	pool := testPool()
	for i := range pool {
		pool[i].Team = i%3 + 1
	}

	_, err := engine.Solve(context.Background(), pool, DefaultRules())
	var infeasible *InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, "team_cap", infeasible.Family)
}

func TestSolve_RejectsContradictoryRules(t *testing.T) {
	engine := NewEngine(nil)

	rules := DefaultRules()
	rules.PositionQuotas[catalog.Forward] = 2 // quotas now sum to 14

	_, err := engine.Solve(context.Background(), testPool(), rules)
	var rerr *RulesError
	require.ErrorAs(t, err, &rerr)
}

func TestPickLineup_FixedSquad(t *testing.T) {
	engine := NewEngine(nil)

	byID := make(map[int]catalog.Player)
	for _, p := range testPool() {
		byID[p.ID] = p
	}
	var squad []catalog.Player
	for _, id := range []int{2, 3, 12, 13, 14, 15, 16, 21, 22, 23, 24, 26, 31, 32, 33} {
		squad = append(squad, byID[id])
	}

	res, err := engine.PickLineup(context.Background(), squad, DefaultRules())
	require.NoError(t, err)

	xi := make([]int, len(res.Lineup.Starters))
	for i, p := range res.Lineup.Starters {
		xi[i] = p.ID
	}
	assert.Equal(t, []int{2, 12, 13, 14, 21, 22, 23, 24, 31, 32, 33}, xi)
	assert.Equal(t, 31, res.Captaincy.CaptainID)
	assert.Equal(t, 32, res.Captaincy.ViceCaptainID)

	benchIDs := make([]int, len(res.Bench))
	for i, p := range res.Bench {
		benchIDs[i] = p.ID
	}
	assert.Equal(t, []int{3, 15, 16, 26}, benchIDs)
}

func TestPickLineup_WrongSquadSize(t *testing.T) {
	engine := NewEngine(nil)

	_, err := engine.PickLineup(context.Background(), testPool()[:10], DefaultRules())
	assert.Error(t, err)
}

func TestPickLineup_FormationInfeasible(t *testing.T) {
	engine := NewEngine(nil)

	// A 15-man roster with only two defenders can never field the three
	// the formation floor demands.
	var squad []catalog.Player
	id := 1
	add := func(pos catalog.Position, n int) {
		for i := 0; i < n; i++ {
			squad = append(squad, catalog.Player{
				ID: id, Position: pos, Team: id, PriceTenths: 50, ProjectedPoints: 3.0, Available: true,
			})
			id++
		}
	}
	add(catalog.Goalkeeper, 2)
	add(catalog.Defender, 2)
	add(catalog.Midfielder, 8)
	add(catalog.Forward, 3)

	_, err := engine.PickLineup(context.Background(), squad, DefaultRules())
	var infeasible *InfeasibleError
	require.ErrorAs(t, err, &infeasible)
	assert.Equal(t, "formation", infeasible.Family)
}

func TestSolve_TimeLimitHonored(t *testing.T) {
	engine := NewEngine(nil)

	rules := DefaultRules()
	rules.SolveTimeLimit = 10 * time.Second

	start := time.Now()
	res, err := engine.Solve(context.Background(), testPool(), rules)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.Less(t, time.Since(start), 10*time.Second)
}
