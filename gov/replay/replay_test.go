package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nilax-Kundu/rgov/gov"
	"github.com/Nilax-Kundu/rgov/gov/trace"
	"github.com/Nilax-Kundu/rgov/gov/workload"
)

const testWindow = int64(100_000)

func singleInput(usages []int64, budget int64) Input {
	return Input{
		WindowUsec:   testWindow,
		CapacityUsec: 1_000_000,
		Workloads:    []gov.WorkloadSpec{{ID: "wl-a", BudgetUsec: budget}},
		Observations: workload.ToObservations("wl-a", usages),
	}
}

func TestRun_ReconstructsScenario(t *testing.T) {
	result, err := Run(singleInput([]int64{150_000, 0, 0}, 100_000))
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	assert.Equal(t, []int64{50_000, 0, 0},
		[]int64{result.Records[0].DebtOut, result.Records[1].DebtOut, result.Records[2].DebtOut})
	assert.Equal(t, []string{trace.RuleOver, trace.RuleUnder, trace.RuleUnder},
		[]string{result.Records[0].RuleID, result.Records[1].RuleID, result.Records[2].RuleID})

	// The null enforcer records the startup apply plus one per window.
	require.Len(t, result.Applied, 4)
	assert.Equal(t, gov.AppliedQuota{WorkloadID: "wl-a", Quota: 100_000, Window: testWindow}, result.Applied[0])
	assert.Equal(t, gov.AppliedQuota{WorkloadID: "wl-a", Quota: 50_000, Window: testWindow}, result.Applied[1])
}

func TestVerify_ByteEqualAcrossRuns(t *testing.T) {
	usages, err := workload.UniformNoise(100_000, 250, 500, 1234)
	require.NoError(t, err)

	records, err := Verify(singleInput(usages, 100_000), 5)
	require.NoError(t, err)
	assert.Len(t, records, 500)
}

func TestVerify_AdversarialPatterns(t *testing.T) {
	patterns := []string{"overshoot", "alternating", "zero", "exact", "accumulate", "oscillation"}
	for _, p := range patterns {
		t.Run(p, func(t *testing.T) {
			usages, err := workload.Generate(p, 100_000, 50, 0)
			require.NoError(t, err)
			_, err = Verify(singleInput(usages, 100_000), 3)
			require.NoError(t, err)
		})
	}
}

func TestVerifyAgainstLog_ClosesTheLoop(t *testing.T) {
	input := singleInput([]int64{200_000, 0, 200_000, 0}, 100_000)
	first, err := Run(input)
	require.NoError(t, err)
	require.NoError(t, VerifyAgainstLog(input, first.Records))
}

func TestVerifyAgainstLog_DetectsDivergence(t *testing.T) {
	input := singleInput([]int64{200_000, 0}, 100_000)
	first, err := Run(input)
	require.NoError(t, err)

	tampered := make([]trace.DecisionRecord, len(first.Records))
	copy(tampered, first.Records)
	tampered[1].DebtOut = 999

	err = VerifyAgainstLog(input, tampered)
	require.Error(t, err)
}

func TestRun_MultiWorkloadIsolation(t *testing.T) {
	// Adding or removing workload j does not alter workload i's records.
	obsBoth := interleave(
		workload.ToObservations("wl-a", []int64{100_000, 0, 50_000}),
		workload.ToObservations("wl-b", []int64{25_000, 25_000, 25_000}))
	both := Input{
		WindowUsec:   testWindow,
		CapacityUsec: 1_000_000,
		Workloads: []gov.WorkloadSpec{
			{ID: "wl-a", BudgetUsec: 80_000},
			{ID: "wl-b", BudgetUsec: 50_000},
		},
		Observations: obsBoth,
	}
	bothResult, err := Run(both)
	require.NoError(t, err)

	aloneResult, err := Run(Input{
		WindowUsec:   testWindow,
		CapacityUsec: 1_000_000,
		Workloads:    []gov.WorkloadSpec{{ID: "wl-b", BudgetUsec: 50_000}},
		Observations: workload.ToObservations("wl-b", []int64{25_000, 25_000, 25_000}),
	})
	require.NoError(t, err)

	var bRecs []trace.DecisionRecord
	for _, rec := range bothResult.Records {
		if rec.WorkloadID == "wl-b" {
			bRecs = append(bRecs, rec)
		}
	}
	assert.Equal(t, aloneResult.Records, bRecs)
}

func TestRun_ExhaustedRecordingFailsLoudly(t *testing.T) {
	// wl-b's sequence is one window short: replay refuses to fabricate the
	// missing observation.
	input := Input{
		WindowUsec:   testWindow,
		CapacityUsec: 1_000_000,
		Workloads: []gov.WorkloadSpec{
			{ID: "wl-a", BudgetUsec: 80_000},
			{ID: "wl-b", BudgetUsec: 50_000},
		},
		Observations: append(
			workload.ToObservations("wl-a", []int64{0, 0}),
			workload.ToObservations("wl-b", []int64{0})...),
	}
	_, err := Run(input)
	require.Error(t, err)
	var obsErr *gov.ObservationError
	require.ErrorAs(t, err, &obsErr)
	assert.Equal(t, "wl-b", obsErr.WorkloadID)
}

func TestLoadInput_FromFiles(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "governor.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(`
window_usec: 100000
capacity_usec: 500000
workloads:
  - id: "wl-a"
    budget_usec: 100000
`), 0644))

	obsPath := filepath.Join(dir, "trace.jsonl")
	f, err := os.Create(obsPath)
	require.NoError(t, err)
	require.NoError(t, trace.WriteObservations(f, workload.ToObservations("wl-a", []int64{150_000, 0})))
	require.NoError(t, f.Close())

	input, err := LoadInput(specPath, obsPath)
	require.NoError(t, err)
	result, err := Run(input)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, trace.RuleOver, result.Records[0].RuleID)
}

// interleave zips two equal-length observation sequences window by window,
// the order a live decision log would record them in.
func interleave(a, b []trace.ObservationLine) []trace.ObservationLine {
	out := make([]trace.ObservationLine, 0, len(a)+len(b))
	for i := range a {
		out = append(out, a[i], b[i])
	}
	return out
}
