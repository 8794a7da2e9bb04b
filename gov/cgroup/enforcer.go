package cgroup

import (
	"errors"

	"github.com/Nilax-Kundu/rgov/gov"
)

// Enforcer is the kernel Enforcer variant: it projects (quota, period) into
// cpu.max with a write-through cache, so re-applying the pair the kernel
// already holds performs no kernel write. It never reads kernel feedback.
type Enforcer struct {
	cgroups map[string]string
	applied map[string]gov.AppliedQuota

	// KernelWrites counts actual cpu.max writes, excluding cache hits.
	KernelWrites int64
}

// NewEnforcer creates an enforcer over a workload id -> cgroup path mapping.
func NewEnforcer(cgroups map[string]string) *Enforcer {
	paths := make(map[string]string, len(cgroups))
	for id, path := range cgroups {
		paths[id] = path
	}
	return &Enforcer{
		cgroups: paths,
		applied: make(map[string]gov.AppliedQuota, len(cgroups)),
	}
}

// Apply writes (quota, window) for the workload. Idempotent: the cache
// records the last pair written per workload and identical re-application is
// a no-op. On a write failure the cache entry is dropped so the next window
// retries the kernel write unconditionally.
func (e *Enforcer) Apply(workloadID string, quota, window int64) error {
	path, ok := e.cgroups[workloadID]
	if !ok {
		return &gov.EnforcementError{WorkloadID: workloadID, Quota: quota, Window: window,
			Err: errNoCgroup}
	}

	want := gov.AppliedQuota{WorkloadID: workloadID, Quota: quota, Window: window}
	if e.applied[workloadID] == want {
		return nil
	}

	if err := WriteQuota(path, quota, window); err != nil {
		delete(e.applied, workloadID)
		return &gov.EnforcementError{WorkloadID: workloadID, Quota: quota, Window: window, Err: err}
	}
	e.KernelWrites++
	e.applied[workloadID] = want
	return nil
}

var errNoCgroup = errors.New("no cgroup registered")
