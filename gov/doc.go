// Package gov provides the windowed deterministic CPU policy engine for rgov.
//
// # Reading Guide
//
// Start with these three files to understand the core:
//   - policy.go: the pure per-workload state machine (R-UNDER / R-EXACT / R-OVER)
//   - orchestrator.go: per-window sequencing (observe -> step -> enforce -> commit -> log)
//   - invariants.go: the I1-I5 step assertions run at every window boundary,
//     and the I7 capacity check run at startup
//
// # Architecture
//
// The gov package defines the adapter interfaces and the policy; variants
// live in sub-packages:
//   - gov/cgroup/: kernel adapters (cpu.stat observation, cpu.max enforcement)
//   - gov/replay/: offline re-execution from recorded observations
//   - gov/trace/: decision records and the canonical decision-log codec
//   - gov/workload/: synthetic observation-sequence generators
//
// Dependencies are strictly one-way: the orchestrator calls into the
// Observer, the policy, and the Enforcer; the policy depends on nothing but
// its inputs. Time enters only through gov/driver.go, which is outside the
// determinism boundary: the orchestrator itself never reads a clock.
//
// # Determinism
//
// Everything the governor decides is a pure function of (prior state,
// observation, declared budget). The decision log is the only externalized
// state; replaying it through gov/replay must reproduce the log byte-equally.
// Workloads are processed in registration order within each tick, which is
// the single fixed tie-breaker; no workload's decision can depend on
// another's.
package gov
