package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"fpl-optimizer/internal/catalog"
)

// SellPriceTenths applies the FPL sale rule: only half of any price rise is
// realized, rounded down to the nearest tenth (5 tenths per 0.2 rise);
// losses are fully realized.
func SellPriceTenths(purchaseTenths, nowTenths int) int {
	if nowTenths <= purchaseTenths {
		return nowTenths
	}
	profit := nowTenths - purchaseTenths
	return purchaseTenths + (profit/20)*5
}

// PlanTransfers runs the transfer-aware solve and derives the plan from the
// symmetric difference between the prior squad and the recommendation. If
// the prior squad itself conflicts with the current constraint set, the plan
// keeps it unchanged with zero transfers and the StaleSquad flag set, since
// doing nothing is always a legal action for the caller.
func (e *Engine) PlanTransfers(ctx context.Context, players []catalog.Player, rules Rules, state *TeamState) (*TransferPlan, error) {
	if state == nil {
		return nil, fmt.Errorf("transfer planning requires a prior team state")
	}
	if len(state.SquadIDs) != rules.SquadSize {
		return nil, fmt.Errorf("prior squad has %d players, rules require %d", len(state.SquadIDs), rules.SquadSize)
	}

	res, err := e.SolveWithTransfers(ctx, players, rules, state)
	if err != nil {
		var infeasible *InfeasibleError
		if errors.As(err, &infeasible) {
			e.logger.WithFields(logrus.Fields{
				"family": infeasible.Family,
				"detail": infeasible.Detail,
			}).Warn("Transfer solve infeasible, keeping prior squad")
			return &TransferPlan{
				AddedIDs:        []int{},
				RemovedIDs:      []int{},
				BankAfterTenths: state.BankTenths,
				StaleSquad:      true,
			}, nil
		}
		return nil, err
	}

	prior := make(map[int]bool, len(state.SquadIDs))
	for _, id := range state.SquadIDs {
		prior[id] = true
	}
	chosen := make(map[int]bool, len(res.Squad.Players))
	for _, p := range res.Squad.Players {
		chosen[p.ID] = true
	}

	added := make([]int, 0)
	removed := make([]int, 0)
	for id := range chosen {
		if !prior[id] {
			added = append(added, id)
		}
	}
	for id := range prior {
		if !chosen[id] {
			removed = append(removed, id)
		}
	}
	sort.Ints(added)
	sort.Ints(removed)

	nowPrices := make(map[int]int, len(players))
	for _, p := range players {
		nowPrices[p.ID] = p.PriceTenths
	}
	bank := state.BankTenths
	for _, id := range removed {
		bank += sellPriceOf(id, nowPrices, state)
	}
	for _, id := range added {
		bank -= nowPrices[id]
	}

	return &TransferPlan{
		AddedIDs:        added,
		RemovedIDs:      removed,
		ExtraTransfers:  res.ExtraTransfers,
		PenaltyPoints:   res.PenaltyPoints,
		BankAfterTenths: bank,
		Result:          res,
	}, nil
}

// ApplyTransfers commits an accepted subset of ins and outs to a team state,
// re-deriving the bank under the sale rule. The move is rejected when it
// would leave the roster off-size or the bank negative.
func ApplyTransfers(state TeamState, ins, outs []int, nowTenths map[int]int) (TeamState, error) {
	owned := make(map[int]bool, len(state.SquadIDs))
	for _, id := range state.SquadIDs {
		owned[id] = true
	}
	inSet := make(map[int]bool, len(ins))
	for _, id := range ins {
		if owned[id] {
			return TeamState{}, fmt.Errorf("player %d is already in the squad", id)
		}
		if inSet[id] {
			return TeamState{}, fmt.Errorf("player %d bought twice", id)
		}
		inSet[id] = true
	}
	outSet := make(map[int]bool, len(outs))
	for _, id := range outs {
		if !owned[id] {
			return TeamState{}, fmt.Errorf("player %d is not in the squad", id)
		}
		if inSet[id] {
			return TeamState{}, fmt.Errorf("player %d both bought and sold", id)
		}
		if outSet[id] {
			return TeamState{}, fmt.Errorf("player %d sold twice", id)
		}
		outSet[id] = true
	}
	if len(state.SquadIDs)-len(outs)+len(ins) != len(state.SquadIDs) {
		return TeamState{}, fmt.Errorf("applying %d ins and %d outs would leave %d players, need %d",
			len(ins), len(outs), len(state.SquadIDs)-len(outs)+len(ins), len(state.SquadIDs))
	}

	bank := state.BankTenths
	for _, id := range outs {
		bank += sellPriceOf(id, nowTenths, &state)
	}
	for _, id := range ins {
		bank -= nowTenths[id]
	}
	if bank < 0 {
		return TeamState{}, fmt.Errorf("insufficient funds: short by %d tenths", -bank)
	}

	next := TeamState{
		BankTenths: bank,
		// After committing a move the allowance resets for the next period.
		FreeTransfers:  1,
		PurchaseTenths: make(map[int]int, len(state.SquadIDs)),
	}
	for _, id := range state.SquadIDs {
		if !outSet[id] {
			next.SquadIDs = append(next.SquadIDs, id)
			if purchase, ok := state.PurchaseTenths[id]; ok {
				next.PurchaseTenths[id] = purchase
			}
		}
	}
	for _, id := range ins {
		next.SquadIDs = append(next.SquadIDs, id)
		next.PurchaseTenths[id] = nowTenths[id]
	}
	sort.Ints(next.SquadIDs)

	return next, nil
}

// sellPriceOf resolves a sale price from the purchase map and current
// prices, assuming no price change for players absent from the pool.
func sellPriceOf(id int, nowTenths map[int]int, state *TeamState) int {
	purchase, hasPurchase := state.PurchaseTenths[id]
	now, hasNow := nowTenths[id]
	switch {
	case !hasNow && !hasPurchase:
		return 0
	case !hasNow:
		now = purchase
	case !hasPurchase:
		purchase = now
	}
	return SellPriceTenths(purchase, now)
}
