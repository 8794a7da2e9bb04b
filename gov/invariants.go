package gov

import (
	"fmt"

	"github.com/Nilax-Kundu/rgov/gov/trace"
)

// CheckStepInvariants asserts the per-step invariants I1–I5 on a completed
// policy transition. A returned error is an InvariantViolation and is fatal:
// the orchestrator halts rather than commit a state that breaks a guarantee.
//
//	I1  debt_out >= 0
//	I2  0 <= quota <= budget
//	I3  mode_out == Normal  => debt_out == 0
//	I4  mode_out == Throttled => debt_out > 0 (debt only ever grows via a
//	    recorded usage > budget, so positive debt witnesses prior excess)
//	I5  debt_out < debt_in => usage < budget (no forgiveness without payment)
func CheckStepInvariants(w int64, workloadID string, stateIn State, usage, budget int64, stateOut State, quota int64, ruleID string) error {
	violation := func(inv, detail string) error {
		return &InvariantViolation{
			Invariant:  inv,
			W:          w,
			WorkloadID: workloadID,
			RuleID:     ruleID,
			Detail:     detail,
		}
	}

	if stateOut.Debt < 0 {
		return violation("I1", fmt.Sprintf("debt_out=%d < 0", stateOut.Debt))
	}
	if quota < 0 || quota > budget {
		return violation("I2", fmt.Sprintf("quota=%d outside [0, %d]", quota, budget))
	}
	if stateOut.Mode == trace.ModeNormal && stateOut.Debt != 0 {
		return violation("I3", fmt.Sprintf("mode_out=Normal with debt_out=%d", stateOut.Debt))
	}
	if stateOut.Mode == trace.ModeThrottled && stateOut.Debt == 0 {
		return violation("I4", "mode_out=Throttled with zero debt (no recorded excess)")
	}
	if stateOut.Debt > stateIn.Debt && usage <= budget {
		return violation("I4", fmt.Sprintf("debt grew %d -> %d without usage(%d) > budget(%d)",
			stateIn.Debt, stateOut.Debt, usage, budget))
	}
	if stateOut.Debt < stateIn.Debt && usage >= budget {
		return violation("I5", fmt.Sprintf("debt shrank %d -> %d without usage(%d) < budget(%d)",
			stateIn.Debt, stateOut.Debt, usage, budget))
	}
	return nil
}

// CheckCapacity asserts the startup admission invariant I7: the sum of
// declared budgets must not exceed host capacity. Overflow of the running sum
// is itself a violation.
func CheckCapacity(budgets []int64, capacity int64) error {
	var total int64
	for _, b := range budgets {
		if b < 0 {
			return &ConfigError{Reason: fmt.Sprintf("negative budget %d", b)}
		}
		if total > capacity-b {
			return &ConfigError{Reason: fmt.Sprintf(
				"invariant I7 violated: total declared budget exceeds capacity %d", capacity)}
		}
		total += b
	}
	return nil
}
