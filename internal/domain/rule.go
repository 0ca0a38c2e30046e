package domain

import "time"

// RuleState is the lifecycle state of a profit-taking rule.
//
// Transitions: ARMED -> FIRED (threshold crossed, close submitted) and
// ARMED -> CANCELLED (caller cancel, position gone, or invariant
// violation). FIRED and CANCELLED are terminal; a rule is never
// re-armed.
type RuleState string

const (
	RuleArmed     RuleState = "ARMED"
	RuleFired     RuleState = "FIRED"
	RuleCancelled RuleState = "CANCELLED"
)

// ProfitTakingRule instructs the monitor to take partial profit on a
// position once its unrealized return crosses a threshold.
type ProfitTakingRule struct {
	Symbol          string
	ProfitThreshold float64 // fraction, e.g. 0.2 for 20%
	ClosePercentage float64 // fraction of the position to close, (0, 1]
	State           RuleState
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsArmed reports whether the rule is still awaiting its trigger.
func (r *ProfitTakingRule) IsArmed() bool {
	return r.State == RuleArmed
}

// CanTransition reports whether moving to the target state is a legal
// lifecycle step. Terminal states cannot be left.
func (r *ProfitTakingRule) CanTransition(to RuleState) bool {
	return r.State == RuleArmed && (to == RuleFired || to == RuleCancelled)
}
