package gov

import (
	"fmt"
	"math"

	"github.com/Nilax-Kundu/rgov/gov/trace"
)

// State is the per-workload policy state tuple (mode, debt, last enforced
// quota). Debt is unpaid overshoot in microseconds and is never negative.
// LastQuota is informational only; no rule reads it.
type State struct {
	Mode      trace.Mode
	Debt      int64
	LastQuota int64
}

// InitialState is the state every workload starts in: Normal, zero debt,
// full declared budget enforced.
func InitialState(budget int64) State {
	return State{Mode: trace.ModeNormal, Debt: 0, LastQuota: budget}
}

// Step is the pure policy transition. It maps (state, observed usage,
// declared budget, window size) to the next state, the quota to enforce for
// the following window, and the identifier of the rule that fired.
//
// Exactly three rules exist, evaluated in order; the first match wins:
//
//	R-UNDER  usage < budget: pay debt down by the unused headroom
//	R-EXACT  usage == budget: carry debt unchanged
//	R-OVER   usage > budget: accumulate the excess as debt
//
// Quota is budget minus remaining debt, floored at zero. All arithmetic is
// on non-negative int64 microseconds; there is no floating point and no
// clamping of the observation itself. The same inputs always yield the same
// outputs: no I/O, no clocks, no randomness.
func Step(state State, usage, budget, window int64) (State, int64, string, error) {
	if usage < 0 {
		return State{}, 0, "", fmt.Errorf("policy step: negative usage %d", usage)
	}
	if budget < 0 {
		return State{}, 0, "", fmt.Errorf("policy step: negative budget %d", budget)
	}
	if window <= 0 {
		return State{}, 0, "", fmt.Errorf("policy step: non-positive window %d", window)
	}
	if state.Debt < 0 {
		return State{}, 0, "", fmt.Errorf("policy step: negative debt %d in prior state", state.Debt)
	}

	var (
		debtOut int64
		ruleID  string
	)
	switch {
	case usage < budget:
		ruleID = trace.RuleUnder
		pay := budget - usage
		if pay > state.Debt {
			pay = state.Debt
		}
		debtOut = state.Debt - pay
	case usage == budget:
		ruleID = trace.RuleExact
		debtOut = state.Debt
	default:
		ruleID = trace.RuleOver
		excess := usage - budget
		if state.Debt > math.MaxInt64-excess {
			return State{}, 0, "", &OverflowError{
				Op: "debt+excess", A: state.Debt, B: excess,
				Detail: "accumulated debt exceeds int64 range",
			}
		}
		debtOut = state.Debt + excess
	}

	mode := trace.ModeNormal
	if debtOut > 0 {
		mode = trace.ModeThrottled
	}

	quota := budget - debtOut
	if quota < 0 {
		quota = 0
	}

	next := State{Mode: mode, Debt: debtOut, LastQuota: quota}
	return next, quota, ruleID, nil
}
