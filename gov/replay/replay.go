// Package replay re-executes the governor from recorded observations with no
// kernel or clock involvement, and verifies that the decision history it
// produces is byte-identical across runs.
package replay

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Nilax-Kundu/rgov/gov"
	"github.com/Nilax-Kundu/rgov/gov/trace"
)

// Input is everything a replay needs: the workload configuration, the window
// size and capacity, and the per-workload observation sequences keyed by
// window index.
type Input struct {
	WindowUsec   int64
	CapacityUsec int64
	Workloads    []gov.WorkloadSpec
	Observations []trace.ObservationLine
}

// InputFromSpec assembles a replay input from a governor spec and a recorded
// observation stream (a full decision log is accepted; extra fields are
// ignored).
func InputFromSpec(spec *gov.GovernorSpec, obs []trace.ObservationLine) Input {
	return Input{
		WindowUsec:   spec.WindowUsec,
		CapacityUsec: spec.CapacityUsec,
		Workloads:    spec.Workloads,
		Observations: obs,
	}
}

// LoadInput reads a replay input from a governor spec file and an observation
// (or decision log) file.
func LoadInput(specPath, obsPath string) (Input, error) {
	spec, err := gov.LoadGovernorSpec(specPath)
	if err != nil {
		return Input{}, err
	}
	if err := spec.Validate(); err != nil {
		return Input{}, err
	}
	f, err := os.Open(obsPath)
	if err != nil {
		return Input{}, fmt.Errorf("open observations %s: %w", obsPath, err)
	}
	defer f.Close()
	obs, err := trace.ReadObservations(f)
	if err != nil {
		return Input{}, err
	}
	return InputFromSpec(spec, obs), nil
}

// recordedObserver replays a pre-recorded observation sequence. Sample
// demands exactly the next recorded (w, workload) pair per workload; a gap or
// mismatch means the recording is not a faithful log and replay refuses to
// proceed.
type recordedObserver struct {
	sequences map[string][]trace.ObservationLine
	cursor    map[string]int
}

func newRecordedObserver(obs []trace.ObservationLine) *recordedObserver {
	seq := make(map[string][]trace.ObservationLine)
	for _, o := range obs {
		seq[o.WorkloadID] = append(seq[o.WorkloadID], o)
	}
	return &recordedObserver{sequences: seq, cursor: make(map[string]int)}
}

func (r *recordedObserver) Sample(workloadID string, w int64) (int64, error) {
	seq := r.sequences[workloadID]
	i := r.cursor[workloadID]
	if i >= len(seq) {
		return 0, &gov.ObservationError{WorkloadID: workloadID,
			Reason: fmt.Sprintf("recording exhausted at w=%d", w)}
	}
	if seq[i].W != w {
		return 0, &gov.ObservationError{WorkloadID: workloadID,
			Reason: fmt.Sprintf("recording out of order: have w=%d, want w=%d", seq[i].W, w)}
	}
	r.cursor[workloadID] = i + 1
	return seq[i].Usage, nil
}

// windows returns the length of the longest recorded sequence, so replay
// ticks through every recorded window; a workload whose recording ends early
// hits exhaustion in Sample and the run fails.
func (r *recordedObserver) windows() int64 {
	n := -1
	for _, seq := range r.sequences {
		if n < 0 || len(seq) > n {
			n = len(seq)
		}
	}
	if n < 0 {
		return 0
	}
	return int64(n)
}

// Result is one replay run: the full decision history plus the enforcement
// calls the null sink recorded.
type Result struct {
	Records []trace.DecisionRecord
	Applied []gov.AppliedQuota
}

// Run replays the input once and returns the produced decision history.
func Run(input Input) (Result, error) {
	observer := newRecordedObserver(input.Observations)
	enforcer := gov.NewMemoryEnforcer()

	orch, err := gov.NewOrchestrator(input.WindowUsec, input.CapacityUsec, observer, enforcer)
	if err != nil {
		return Result{}, err
	}
	orch.RetainRecords()
	for _, wl := range input.Workloads {
		if err := orch.Register(wl.ID, wl.BudgetUsec); err != nil {
			return Result{}, err
		}
	}
	if err := orch.Start(); err != nil {
		return Result{}, err
	}

	for w := int64(0); w < observer.windows(); w++ {
		if err := orch.Tick(); err != nil {
			return Result{}, err
		}
	}
	return Result{Records: orch.Records(), Applied: enforcer.Applied}, nil
}

// Verify replays the input runs times and requires every run's canonical
// record stream to be byte-equal to the first. Any divergence is a
// correctness failure, reported with the first differing run.
func Verify(input Input, runs int) ([]trace.DecisionRecord, error) {
	if runs < 2 {
		return nil, fmt.Errorf("verify needs at least 2 runs, got %d", runs)
	}
	first, err := Run(input)
	if err != nil {
		return nil, err
	}
	want, err := trace.CanonicalSequence(first.Records)
	if err != nil {
		return nil, err
	}
	for i := 1; i < runs; i++ {
		next, err := Run(input)
		if err != nil {
			return nil, err
		}
		got, err := trace.CanonicalSequence(next.Records)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(want, got) {
			return nil, fmt.Errorf("determinism violation: run %d diverged from run 0", i)
		}
	}
	return first.Records, nil
}

// VerifyAgainstLog replays the input and requires the produced history to be
// byte-equal to a previously recorded decision log. This closes the loop
// between a live run and its offline reconstruction.
func VerifyAgainstLog(input Input, recorded []trace.DecisionRecord) error {
	result, err := Run(input)
	if err != nil {
		return err
	}
	want, err := trace.CanonicalSequence(recorded)
	if err != nil {
		return err
	}
	got, err := trace.CanonicalSequence(result.Records)
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("replay diverged from recorded log (%d recorded, %d replayed records)",
			len(recorded), len(result.Records))
	}
	return nil
}

// MarshalInput serializes a replay input's configuration half as YAML, for
// writing alongside generated observation traces.
func MarshalInput(input Input) ([]byte, error) {
	spec := gov.GovernorSpec{
		WindowUsec:   input.WindowUsec,
		CapacityUsec: input.CapacityUsec,
		Workloads:    input.Workloads,
	}
	b, err := yaml.Marshal(&spec)
	if err != nil {
		return nil, fmt.Errorf("marshal replay spec: %w", err)
	}
	return b, nil
}
