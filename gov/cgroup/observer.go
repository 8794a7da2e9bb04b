package cgroup

import (
	"fmt"

	"github.com/Nilax-Kundu/rgov/gov"
)

// Observer is the kernel Observer variant: it derives per-window usage as the
// delta of the cumulative usage_usec counter between consecutive window
// boundaries. It holds no state beyond the last counter value per workload.
type Observer struct {
	cgroups  map[string]string
	baseline map[string]int64
}

// NewObserver creates an observer over a workload id -> cgroup path mapping.
func NewObserver(cgroups map[string]string) *Observer {
	paths := make(map[string]string, len(cgroups))
	for id, path := range cgroups {
		paths[id] = path
	}
	return &Observer{
		cgroups:  paths,
		baseline: make(map[string]int64, len(cgroups)),
	}
}

// Sample returns the microseconds consumed since the previous boundary. The
// first sample for a workload seeds the baseline and returns 0. A counter
// that goes backwards is a kernel-level fault and is reported as an
// ObservationError, never clamped or substituted.
func (obs *Observer) Sample(workloadID string, w int64) (int64, error) {
	path, ok := obs.cgroups[workloadID]
	if !ok {
		return 0, &gov.ObservationError{WorkloadID: workloadID, Reason: "no cgroup registered"}
	}

	current, err := ReadUsage(path)
	if err != nil {
		return 0, &gov.ObservationError{WorkloadID: workloadID, Reason: "counter unreadable", Err: err}
	}

	prev, seeded := obs.baseline[workloadID]
	obs.baseline[workloadID] = current
	if !seeded {
		return 0, nil
	}
	if current < prev {
		return 0, &gov.ObservationError{
			WorkloadID: workloadID,
			Reason:     fmt.Sprintf("non-monotonic counter: %d < %d at w=%d", current, prev, w),
		}
	}
	return current - prev, nil
}
