package gov

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nilax-Kundu/rgov/gov/trace"
)

// seqObserver replays fixed per-workload usage sequences, indexed by window.
type seqObserver struct {
	usages map[string][]int64
}

func (s *seqObserver) Sample(workloadID string, w int64) (int64, error) {
	seq, ok := s.usages[workloadID]
	if !ok || w >= int64(len(seq)) {
		return 0, &ObservationError{WorkloadID: workloadID, Reason: "sequence exhausted"}
	}
	return seq[w], nil
}

// failingEnforcer fails every Apply after the first n successes.
type failingEnforcer struct {
	MemoryEnforcer
	successes int
	calls     int
}

func (f *failingEnforcer) Apply(workloadID string, quota, window int64) error {
	f.calls++
	if f.calls > f.successes {
		return errors.New("simulated kernel write failure")
	}
	return f.MemoryEnforcer.Apply(workloadID, quota, window)
}

func newTestOrchestrator(t *testing.T, usages map[string][]int64, budgets map[string]int64, order []string) (*Orchestrator, *MemoryEnforcer) {
	t.Helper()
	enforcer := NewMemoryEnforcer()
	orch, err := NewOrchestrator(testWindow, 1_000_000, &seqObserver{usages: usages}, enforcer)
	require.NoError(t, err)
	orch.RetainRecords()
	for _, id := range order {
		require.NoError(t, orch.Register(id, budgets[id]))
	}
	require.NoError(t, orch.Start())
	return orch, enforcer
}

func TestOrchestrator_SingleWorkloadHistory(t *testing.T) {
	orch, enforcer := newTestOrchestrator(t,
		map[string][]int64{"wl-a": {150_000, 0, 0}},
		map[string]int64{"wl-a": 100_000},
		[]string{"wl-a"})

	for i := 0; i < 3; i++ {
		require.NoError(t, orch.Tick())
	}
	require.Equal(t, int64(3), orch.WindowIndex())

	recs := orch.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, []string{trace.RuleOver, trace.RuleUnder, trace.RuleUnder},
		[]string{recs[0].RuleID, recs[1].RuleID, recs[2].RuleID})
	assert.Equal(t, []int64{50_000, 0, 0}, []int64{recs[0].DebtOut, recs[1].DebtOut, recs[2].DebtOut})
	assert.Equal(t, []int64{50_000, 100_000, 100_000}, []int64{recs[0].Quota, recs[1].Quota, recs[2].Quota})

	// Startup applies the declared budget, then one apply per tick.
	require.Len(t, enforcer.Applied, 4)
	assert.Equal(t, AppliedQuota{"wl-a", 100_000, testWindow}, enforcer.Applied[0])
	assert.Equal(t, AppliedQuota{"wl-a", 50_000, testWindow}, enforcer.Applied[1])
}

func TestOrchestrator_TwoWorkloadIsolation(t *testing.T) {
	// WL A overshoots then idles; WL B stays under budget throughout. B's
	// records must be identical to a single-workload run of B alone.
	usagesA := []int64{100_000, 0}
	usagesB := []int64{25_000, 25_000}

	both, _ := newTestOrchestrator(t,
		map[string][]int64{"wl-a": usagesA, "wl-b": usagesB},
		map[string]int64{"wl-a": 80_000, "wl-b": 50_000},
		[]string{"wl-a", "wl-b"})
	alone, _ := newTestOrchestrator(t,
		map[string][]int64{"wl-b": usagesB},
		map[string]int64{"wl-b": 50_000},
		[]string{"wl-b"})

	for i := 0; i < 2; i++ {
		require.NoError(t, both.Tick())
		require.NoError(t, alone.Tick())
	}

	var aRecs, bRecs []trace.DecisionRecord
	for _, rec := range both.Records() {
		switch rec.WorkloadID {
		case "wl-a":
			aRecs = append(aRecs, rec)
		case "wl-b":
			bRecs = append(bRecs, rec)
		}
	}

	require.Len(t, aRecs, 2)
	assert.Equal(t, []int64{20_000, 0}, []int64{aRecs[0].DebtOut, aRecs[1].DebtOut})
	assert.Equal(t, []int64{60_000, 80_000}, []int64{aRecs[0].Quota, aRecs[1].Quota})
	assert.Equal(t, trace.ModeThrottled, aRecs[0].ModeOut)
	assert.Equal(t, trace.ModeNormal, aRecs[1].ModeOut)

	require.Len(t, bRecs, 2)
	assert.Equal(t, []int64{0, 0}, []int64{bRecs[0].DebtOut, bRecs[1].DebtOut})
	assert.Equal(t, []int64{50_000, 50_000}, []int64{bRecs[0].Quota, bRecs[1].Quota})

	assert.Equal(t, alone.Records(), bRecs, "workload B's history must not depend on workload A")
}

func TestOrchestrator_RegistrationOrderFixesIteration(t *testing.T) {
	orch, _ := newTestOrchestrator(t,
		map[string][]int64{"zz": {0}, "aa": {0}, "mm": {0}},
		map[string]int64{"zz": 10_000, "aa": 10_000, "mm": 10_000},
		[]string{"zz", "aa", "mm"})

	require.NoError(t, orch.Tick())

	var got []string
	for _, rec := range orch.Records() {
		got = append(got, rec.WorkloadID)
	}
	assert.Equal(t, []string{"zz", "aa", "mm"}, got, "iteration must follow registration order, not id order")
}

func TestOrchestrator_EnforcementFailureDoesNotAlterDecisions(t *testing.T) {
	enforcer := &failingEnforcer{successes: 1} // initial apply succeeds, every tick apply fails
	orch, err := NewOrchestrator(testWindow, 1_000_000,
		&seqObserver{usages: map[string][]int64{"wl-a": {150_000, 0}}}, enforcer)
	require.NoError(t, err)
	orch.RetainRecords()
	require.NoError(t, orch.Register("wl-a", 100_000))
	require.NoError(t, orch.Start())

	require.NoError(t, orch.Tick())
	require.NoError(t, orch.Tick())

	assert.Equal(t, int64(2), orch.EnforcementFailures)
	recs := orch.Records()
	require.Len(t, recs, 2)
	// Decision history matches the clean-enforcement run exactly.
	assert.Equal(t, int64(50_000), recs[0].DebtOut)
	assert.Equal(t, int64(0), recs[1].DebtOut)
	state, ok := orch.State("wl-a")
	require.True(t, ok)
	assert.Equal(t, trace.ModeNormal, state.Mode)
}

func TestOrchestrator_ObservationErrorIsFatalForTheWindow(t *testing.T) {
	orch, _ := newTestOrchestrator(t,
		map[string][]int64{"wl-a": {10_000}},
		map[string]int64{"wl-a": 100_000},
		[]string{"wl-a"})

	require.NoError(t, orch.Tick())
	err := orch.Tick() // sequence exhausted
	require.Error(t, err)
	var obsErr *ObservationError
	require.ErrorAs(t, err, &obsErr)
	assert.Equal(t, int64(1), orch.WindowIndex(), "failed window must not advance the index")
}

func TestOrchestrator_RegistryLifecycle(t *testing.T) {
	enforcer := NewMemoryEnforcer()
	orch, err := NewOrchestrator(testWindow, 150_000, &seqObserver{usages: map[string][]int64{}}, enforcer)
	require.NoError(t, err)

	require.NoError(t, orch.Register("wl-a", 100_000))

	err = orch.Register("wl-a", 10_000)
	require.Error(t, err, "duplicate id")

	err = orch.Register("wl-b", 60_000)
	require.Error(t, err, "capacity exceeded")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.True(t, strings.Contains(cfgErr.Reason, "I7"))

	require.NoError(t, orch.Register("wl-b", 50_000))
	require.NoError(t, orch.Deregister("wl-b"))
	assert.Equal(t, []string{"wl-a"}, orch.Workloads())

	require.Error(t, orch.Tick(), "tick before start")
	require.NoError(t, orch.Start())
	require.Error(t, orch.Register("wl-c", 1_000), "register after start")
}

func TestOrchestrator_ZeroBudgetWorkloadIsAdmissible(t *testing.T) {
	orch, enforcer := newTestOrchestrator(t,
		map[string][]int64{"wl-zero": {0, 500}},
		map[string]int64{"wl-zero": 0},
		[]string{"wl-zero"})

	require.NoError(t, orch.Tick())
	require.NoError(t, orch.Tick())

	recs := orch.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, trace.RuleExact, recs[0].RuleID)
	assert.Equal(t, trace.RuleOver, recs[1].RuleID)
	assert.Equal(t, int64(500), recs[1].DebtOut)
	for _, a := range enforcer.Applied {
		assert.Equal(t, int64(0), a.Quota)
	}
}

func TestOrchestrator_DecisionLogMatchesRetainedRecords(t *testing.T) {
	var sink strings.Builder
	enforcer := NewMemoryEnforcer()
	orch, err := NewOrchestrator(testWindow, 1_000_000,
		&seqObserver{usages: map[string][]int64{"wl-a": {150_000, 0}}}, enforcer)
	require.NoError(t, err)
	orch.RetainRecords()
	orch.SetDecisionLog(trace.NewWriter(&sink))
	require.NoError(t, orch.Register("wl-a", 100_000))
	require.NoError(t, orch.Start())
	require.NoError(t, orch.Tick())
	require.NoError(t, orch.Tick())
	require.NoError(t, orch.Shutdown())

	want, err := trace.CanonicalSequence(orch.Records())
	require.NoError(t, err)
	assert.Equal(t, string(want), sink.String())
}
