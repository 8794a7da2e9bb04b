package gov

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Nilax-Kundu/rgov/gov/trace"
)

// Orchestrator owns the window index, the workload registry, and the decision
// log. It sequences observation -> policy -> enforcement -> commit -> append
// for every workload at each window boundary, in registration order. It never
// consults wall-clock time; Tick is driven externally (gov/driver.go for live
// runs, gov/replay for offline re-execution).
type Orchestrator struct {
	window   int64
	capacity int64
	observer Observer
	enforcer Enforcer

	w       int64
	order   []string // registration order; the only cross-workload ordering
	budgets map[string]int64
	states  map[string]State

	log     *trace.Writer
	retain  bool
	records []trace.DecisionRecord

	started bool

	// EnforcementFailures counts kernel write failures. Failures are logged
	// and never alter decisions; the next tick re-applies the same quota.
	EnforcementFailures int64
}

// NewOrchestrator creates an orchestrator for the given window size and host
// capacity (both microseconds), wired to the given adapters.
func NewOrchestrator(windowUsec, capacityUsec int64, observer Observer, enforcer Enforcer) (*Orchestrator, error) {
	if windowUsec <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("window size must be positive, got %d", windowUsec)}
	}
	if capacityUsec <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("capacity must be positive, got %d", capacityUsec)}
	}
	return &Orchestrator{
		window:   windowUsec,
		capacity: capacityUsec,
		observer: observer,
		enforcer: enforcer,
		budgets:  make(map[string]int64),
		states:   make(map[string]State),
	}, nil
}

// SetDecisionLog attaches an append-only decision-log sink. Records are
// appended after commit; nothing ever reads them back into a decision.
func (o *Orchestrator) SetDecisionLog(w *trace.Writer) {
	o.log = w
}

// RetainRecords keeps every DecisionRecord in memory, for replay and tests.
func (o *Orchestrator) RetainRecords() {
	o.retain = true
}

// Register adds a workload with its declared budget. Registration order fixes
// the iteration order for every subsequent tick. The capacity precondition
// (I7) is maintained incrementally: a registration that would push the total
// declared budget past capacity is rejected.
func (o *Orchestrator) Register(id string, budgetUsec int64) error {
	if o.started {
		return &ConfigError{Reason: fmt.Sprintf("cannot register %q after start", id)}
	}
	if id == "" {
		return &ConfigError{Reason: "workload id must be non-empty"}
	}
	if _, dup := o.budgets[id]; dup {
		return &ConfigError{Reason: fmt.Sprintf("duplicate workload id %q", id)}
	}
	if budgetUsec < 0 {
		return &ConfigError{Reason: fmt.Sprintf("workload %q: negative budget %d", id, budgetUsec)}
	}
	var total int64
	for _, b := range o.budgets {
		total += b
	}
	if total > o.capacity-budgetUsec {
		return &ConfigError{Reason: fmt.Sprintf(
			"invariant I7 violated: registering %q (budget %d) exceeds capacity %d", id, budgetUsec, o.capacity)}
	}

	o.order = append(o.order, id)
	o.budgets[id] = budgetUsec
	o.states[id] = InitialState(budgetUsec)
	return nil
}

// Deregister removes a workload and destroys its policy state. Only legal
// between ticks; the registry is never mutated mid-window.
func (o *Orchestrator) Deregister(id string) error {
	if _, ok := o.budgets[id]; !ok {
		return &ConfigError{Reason: fmt.Sprintf("unknown workload id %q", id)}
	}
	for i, wid := range o.order {
		if wid == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	delete(o.budgets, id)
	delete(o.states, id)
	return nil
}

// Start emits the initial enforcement (the full declared budget) for every
// registered workload and arms the tick loop. Initial enforcement failures
// are real kernel errors and abort startup.
func (o *Orchestrator) Start() error {
	if o.started {
		return &ConfigError{Reason: "orchestrator already started"}
	}
	if len(o.order) == 0 {
		return &ConfigError{Reason: "no workloads registered"}
	}
	for _, id := range o.order {
		if err := o.enforcer.Apply(id, o.budgets[id], o.window); err != nil {
			if _, ok := err.(*EnforcementError); ok {
				return err
			}
			return &EnforcementError{WorkloadID: id, Quota: o.budgets[id], Window: o.window, Err: err}
		}
	}
	o.started = true
	return nil
}

// Tick advances one window boundary. For each workload, in registration
// order: sample the observation, run the pure policy step, assert the step
// invariants, apply the enforcement decision, commit the new state, and
// append the decision record. The window index increments only after every
// workload has been processed.
//
// Observation and invariant failures are fatal and leave the window index
// unchanged. Enforcement failures are logged and counted; decision history
// is already determined at that point and is committed regardless.
func (o *Orchestrator) Tick() error {
	if !o.started {
		return &ConfigError{Reason: "tick before start"}
	}
	for _, id := range o.order {
		budget := o.budgets[id]
		stateIn := o.states[id]

		usage, err := o.observer.Sample(id, o.w)
		if err != nil {
			if _, ok := err.(*ObservationError); ok {
				return err
			}
			return &ObservationError{WorkloadID: id, Reason: "sample failed", Err: err}
		}
		if usage < 0 {
			return &ObservationError{WorkloadID: id, Reason: fmt.Sprintf("negative observation %d", usage)}
		}

		stateOut, quota, ruleID, err := Step(stateIn, usage, budget, o.window)
		if err != nil {
			return err
		}
		if err := CheckStepInvariants(o.w, id, stateIn, usage, budget, stateOut, quota, ruleID); err != nil {
			return err
		}

		if err := o.enforcer.Apply(id, quota, o.window); err != nil {
			o.EnforcementFailures++
			logrus.Warnf("enforcement failed for workload %s at w=%d: %v (quota %d re-applied next window)",
				id, o.w, err, quota)
		}

		o.states[id] = stateOut

		rec := trace.DecisionRecord{
			W:          o.w,
			WorkloadID: id,
			ModeIn:     stateIn.Mode,
			DebtIn:     stateIn.Debt,
			Usage:      usage,
			Budget:     budget,
			Window:     o.window,
			ModeOut:    stateOut.Mode,
			DebtOut:    stateOut.Debt,
			Quota:      quota,
			RuleID:     ruleID,
		}
		if o.log != nil {
			if err := o.log.Append(rec); err != nil {
				return err
			}
		}
		if o.retain {
			o.records = append(o.records, rec)
		}
		logrus.Debugf("[w %07d] %s: usage=%d budget=%d rule=%s debt=%d quota=%d mode=%s",
			o.w, id, usage, budget, ruleID, stateOut.Debt, quota, stateOut.Mode)
	}
	o.w++
	return nil
}

// WindowIndex returns the index of the next window to be processed.
func (o *Orchestrator) WindowIndex() int64 {
	return o.w
}

// Workloads returns the workload ids in registration order.
func (o *Orchestrator) Workloads() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// State returns a snapshot of a workload's current policy state.
func (o *Orchestrator) State(id string) (State, bool) {
	s, ok := o.states[id]
	return s, ok
}

// Records returns the retained decision records (RetainRecords must have been
// enabled before ticking).
func (o *Orchestrator) Records() []trace.DecisionRecord {
	return o.records
}

// Restore re-applies each workload's full declared budget, best-effort.
// Intended for shutdown; failures are logged and never alter policy state.
func (o *Orchestrator) Restore() {
	for _, id := range o.order {
		if err := o.enforcer.Apply(id, o.budgets[id], o.window); err != nil {
			logrus.Warnf("restore failed for workload %s: %v", id, err)
		}
	}
}

// Shutdown flushes the decision log.
func (o *Orchestrator) Shutdown() error {
	if o.log != nil {
		return o.log.Flush()
	}
	return nil
}
