// Package workload generates synthetic observation sequences for exercising
// the policy engine: adversarial fixed patterns plus a seeded random soak
// generator. Emitted usages are integer microseconds; factors are expressed
// in percent so no floating point reaches a trace.
package workload

import (
	"fmt"
	"math/rand"

	"github.com/Nilax-Kundu/rgov/gov/trace"
)

// scale applies a percent factor to a budget with integer arithmetic.
func scale(budget int64, percent int64) int64 {
	return budget * percent / 100
}

// ContinuousOvershoot emits numWindows observations at overshootPct of the
// budget (overshootPct > 100). Exercises unbounded debt accumulation.
func ContinuousOvershoot(budget, overshootPct int64, numWindows int) ([]int64, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", budget)
	}
	if overshootPct <= 100 {
		return nil, fmt.Errorf("overshoot percent must exceed 100, got %d", overshootPct)
	}
	if numWindows <= 0 {
		return nil, fmt.Errorf("num windows must be positive, got %d", numWindows)
	}
	usage := scale(budget, overshootPct)
	seq := make([]int64, numWindows)
	for i := range seq {
		seq[i] = usage
	}
	return seq, nil
}

// Alternating emits cycles of one overshoot window (overshootPct > 100)
// followed by one undershoot window (undershootPct < 100). Exercises debt
// accumulation against paydown.
func Alternating(budget, overshootPct, undershootPct int64, numCycles int) ([]int64, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", budget)
	}
	if overshootPct <= 100 {
		return nil, fmt.Errorf("overshoot percent must exceed 100, got %d", overshootPct)
	}
	if undershootPct < 0 || undershootPct >= 100 {
		return nil, fmt.Errorf("undershoot percent must be in [0, 100), got %d", undershootPct)
	}
	if numCycles <= 0 {
		return nil, fmt.Errorf("num cycles must be positive, got %d", numCycles)
	}
	high := scale(budget, overshootPct)
	low := scale(budget, undershootPct)
	seq := make([]int64, 0, 2*numCycles)
	for i := 0; i < numCycles; i++ {
		seq = append(seq, high, low)
	}
	return seq, nil
}

// ZeroUsage emits numWindows idle observations. Exercises paydown to Normal.
func ZeroUsage(numWindows int) ([]int64, error) {
	if numWindows <= 0 {
		return nil, fmt.Errorf("num windows must be positive, got %d", numWindows)
	}
	return make([]int64, numWindows), nil
}

// ExactBoundary emits numWindows observations exactly at the budget.
// Exercises the R-EXACT rule: no forgiveness, no new excess.
func ExactBoundary(budget int64, numWindows int) ([]int64, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", budget)
	}
	if numWindows <= 0 {
		return nil, fmt.Errorf("num windows must be positive, got %d", numWindows)
	}
	seq := make([]int64, numWindows)
	for i := range seq {
		seq[i] = budget
	}
	return seq, nil
}

// AccumulateThenPay emits an accumulation phase at overshootPct followed by a
// paydown phase at paydownPct. Exercises long debt histories.
func AccumulateThenPay(budget, overshootPct int64, accumulationWindows int, paydownPct int64, paydownWindows int) ([]int64, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", budget)
	}
	if overshootPct <= 100 {
		return nil, fmt.Errorf("overshoot percent must exceed 100, got %d", overshootPct)
	}
	if paydownPct < 0 || paydownPct >= 100 {
		return nil, fmt.Errorf("paydown percent must be in [0, 100), got %d", paydownPct)
	}
	if accumulationWindows <= 0 || paydownWindows <= 0 {
		return nil, fmt.Errorf("phase lengths must be positive, got %d and %d", accumulationWindows, paydownWindows)
	}
	high := scale(budget, overshootPct)
	low := scale(budget, paydownPct)
	seq := make([]int64, 0, accumulationWindows+paydownWindows)
	for i := 0; i < accumulationWindows; i++ {
		seq = append(seq, high)
	}
	for i := 0; i < paydownWindows; i++ {
		seq = append(seq, low)
	}
	return seq, nil
}

// Oscillation rapidly alternates highPct (> 100) and lowPct (< 100) windows.
// Exercises mode flapping between Throttled and Normal.
func Oscillation(budget, highPct, lowPct int64, numOscillations int) ([]int64, error) {
	return Alternating(budget, highPct, lowPct, numOscillations)
}

// UniformNoise emits numWindows observations drawn uniformly from
// [0, maxPct% of budget] using an explicitly seeded source, for randomized
// soak traces. The same seed always yields the same sequence.
func UniformNoise(budget, maxPct int64, numWindows int, seed int64) ([]int64, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", budget)
	}
	if maxPct <= 0 {
		return nil, fmt.Errorf("max percent must be positive, got %d", maxPct)
	}
	if numWindows <= 0 {
		return nil, fmt.Errorf("num windows must be positive, got %d", numWindows)
	}
	rng := rand.New(rand.NewSource(seed))
	ceiling := scale(budget, maxPct)
	seq := make([]int64, numWindows)
	for i := range seq {
		seq[i] = rng.Int63n(ceiling + 1)
	}
	return seq, nil
}

// ToObservations tags a usage sequence with a workload id and consecutive
// window indices, producing replay-input lines.
func ToObservations(workloadID string, usages []int64) []trace.ObservationLine {
	obs := make([]trace.ObservationLine, len(usages))
	for i, u := range usages {
		obs[i] = trace.ObservationLine{W: int64(i), WorkloadID: workloadID, Usage: u}
	}
	return obs
}

// Generate dispatches by pattern name, for the gen subcommand.
// Patterns: overshoot, alternating, zero, exact, accumulate, oscillation, noise.
func Generate(pattern string, budget int64, numWindows int, seed int64) ([]int64, error) {
	switch pattern {
	case "overshoot":
		return ContinuousOvershoot(budget, 200, numWindows)
	case "alternating":
		return Alternating(budget, 200, 50, numWindows)
	case "zero":
		return ZeroUsage(numWindows)
	case "exact":
		return ExactBoundary(budget, numWindows)
	case "accumulate":
		half := numWindows / 2
		if half == 0 {
			half = 1
		}
		return AccumulateThenPay(budget, 150, half, 50, half)
	case "oscillation":
		return Oscillation(budget, 300, 10, numWindows)
	case "noise":
		return UniformNoise(budget, 200, numWindows, seed)
	default:
		return nil, fmt.Errorf("unknown pattern %q; valid: overshoot, alternating, zero, exact, accumulate, oscillation, noise", pattern)
	}
}
