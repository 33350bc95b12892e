package optimizer

import "fmt"

// InfeasibleError means no assignment satisfies the hard constraints.
// Family names the unsatisfiable constraint family when the diagnosis can
// pin one down ("budget", "position_quota", "team_cap", "cash_flow") and
// "constraints" otherwise.
type InfeasibleError struct {
	Family string
	Detail string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("infeasible (%s): %s", e.Family, e.Detail)
}

// RulesError reports a contradictory rule set.
type RulesError struct {
	Reason string
}

func (e *RulesError) Error() string {
	return fmt.Sprintf("invalid rules: %s", e.Reason)
}
