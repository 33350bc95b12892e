package optimizer

import (
	"time"

	"fpl-optimizer/internal/catalog"
)

// Status reports the quality of an engine result.
type Status string

const (
	// StatusOptimal means the solution is proven best.
	StatusOptimal Status = "optimal"
	// StatusInfeasible means no squad satisfies the hard constraints.
	StatusInfeasible Status = "infeasible"
	// StatusSuboptimalTimeout means the time budget expired and the result
	// is the best feasible squad found so far.
	StatusSuboptimalTimeout Status = "suboptimal_timeout"
)

// FormationRanges bounds the outfield position counts among the starting XI.
// The starting goalkeeper count is always exactly one.
type FormationRanges struct {
	DefMin int `json:"def_min"`
	DefMax int `json:"def_max"`
	MidMin int `json:"mid_min"`
	MidMax int `json:"mid_max"`
	FwdMin int `json:"fwd_min"`
	FwdMax int `json:"fwd_max"`
}

// DefaultFormation returns the conventional FPL formation ranges.
func DefaultFormation() FormationRanges {
	return FormationRanges{DefMin: 3, DefMax: 5, MidMin: 2, MidMax: 5, FwdMin: 1, FwdMax: 3}
}

// Rules is the full rule set a solve runs under. All values are
// configuration, not hard-coded assumptions.
type Rules struct {
	BudgetTenths   int                      `json:"budget_tenths"`
	TeamCap        int                      `json:"team_cap"`
	SquadSize      int                      `json:"squad_size"`
	StartingSize   int                      `json:"starting_size"`
	PositionQuotas map[catalog.Position]int `json:"position_quotas"`
	Formation      FormationRanges          `json:"formation"`
	FreeTransfers  int                      `json:"free_transfers"`
	HitCost        float64                  `json:"hit_cost"`
	SolveTimeLimit time.Duration            `json:"solve_time_limit"`
}

// DefaultRules returns the standard FPL rule set: 100.0 budget, 15-man squad
// with 2/5/5/3 quotas, 3 players per club, 11 starters, 4-point hits.
func DefaultRules() Rules {
	return Rules{
		BudgetTenths: 1000,
		TeamCap:      3,
		SquadSize:    15,
		StartingSize: 11,
		PositionQuotas: map[catalog.Position]int{
			catalog.Goalkeeper: 2,
			catalog.Defender:   5,
			catalog.Midfielder: 5,
			catalog.Forward:    3,
		},
		Formation:      DefaultFormation(),
		FreeTransfers:  0,
		HitCost:        4.0,
		SolveTimeLimit: 15 * time.Second,
	}
}

// Validate checks the rule set for internal contradictions.
func (r Rules) Validate() error {
	quotaTotal := 0
	for _, q := range r.PositionQuotas {
		if q < 0 {
			return &RulesError{Reason: "negative position quota"}
		}
		quotaTotal += q
	}
	if quotaTotal != r.SquadSize {
		return &RulesError{Reason: "position quotas do not sum to the squad size"}
	}
	if r.StartingSize > r.SquadSize {
		return &RulesError{Reason: "starting size exceeds squad size"}
	}
	f := r.Formation
	if f.DefMin > f.DefMax || f.MidMin > f.MidMax || f.FwdMin > f.FwdMax {
		return &RulesError{Reason: "formation range has min above max"}
	}
	if 1+f.DefMin+f.MidMin+f.FwdMin > r.StartingSize {
		return &RulesError{Reason: "formation minimums exceed the starting size"}
	}
	if 1+f.DefMax+f.MidMax+f.FwdMax < r.StartingSize {
		return &RulesError{Reason: "formation maximums cannot fill the starting size"}
	}
	if r.TeamCap <= 0 {
		return &RulesError{Reason: "team cap must be positive"}
	}
	if r.FreeTransfers < 0 {
		return &RulesError{Reason: "negative free transfers"}
	}
	return nil
}

// Squad is the full roster for a gameweek, canonically ordered by element ID.
type Squad struct {
	Players []catalog.Player `json:"players"`
}

// IDs returns the element IDs of the squad in canonical order.
func (s Squad) IDs() []int {
	ids := make([]int, len(s.Players))
	for i, p := range s.Players {
		ids[i] = p.ID
	}
	return ids
}

// TotalPriceTenths is the combined price of the squad.
func (s Squad) TotalPriceTenths() int {
	total := 0
	for _, p := range s.Players {
		total += p.PriceTenths
	}
	return total
}

// Contains reports whether the squad holds the given element ID.
func (s Squad) Contains(id int) bool {
	for _, p := range s.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Lineup is the starting XI drawn from a squad, ordered by element ID.
type Lineup struct {
	Starters []catalog.Player `json:"starters"`
}

// Captaincy designates the captain (points doubled) and the vice-captain
// fallback. Both are starters and always distinct.
type Captaincy struct {
	CaptainID     int `json:"captain_id"`
	ViceCaptainID int `json:"vice_captain_id"`
}

// Result is the value produced by one engine solve. It has no shared mutable
// state; every call builds a fresh one.
type Result struct {
	Status         Status           `json:"status"`
	Squad          Squad            `json:"squad"`
	Lineup         Lineup           `json:"lineup"`
	Bench          []catalog.Player `json:"bench"`
	Captaincy      Captaincy        `json:"captaincy"`
	Objective      float64          `json:"objective"`
	ExtraTransfers int              `json:"extra_transfers"`
	PenaltyPoints  float64          `json:"penalty_points"`
	Nodes          int64            `json:"nodes_explored"`
	SolveTime      time.Duration    `json:"solve_time"`
}

// TeamState is the caller-supplied prior state for transfer planning. The
// engine never persists it.
type TeamState struct {
	SquadIDs       []int       `json:"element_ids"`
	BankTenths     int         `json:"bank_tenths"`
	FreeTransfers  int         `json:"free_transfers"`
	PurchaseTenths map[int]int `json:"purchases_tenths"`
}

// TransferPlan is the symmetric difference between the prior squad and the
// recommended one, with the hit accounting and resulting bank.
type TransferPlan struct {
	AddedIDs        []int   `json:"transfers_in"`
	RemovedIDs      []int   `json:"transfers_out"`
	ExtraTransfers  int     `json:"extra_transfers"`
	PenaltyPoints   float64 `json:"penalty_points"`
	BankAfterTenths int     `json:"bank_after_tenths"`
	// StaleSquad is set when the prior squad no longer fits the current
	// constraint set; the plan then keeps it unchanged with no transfers.
	StaleSquad bool    `json:"stale_squad"`
	Result     *Result `json:"result,omitempty"`
}
