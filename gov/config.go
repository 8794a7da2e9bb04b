package gov

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultWindowUsec is the process-wide enforcement window size used when the
// spec leaves window_usec unset: 100ms.
const DefaultWindowUsec = 100_000

// GovernorSpec is the top-level governor configuration.
// Loaded from YAML via LoadGovernorSpec(path).
type GovernorSpec struct {
	WindowUsec   int64          `yaml:"window_usec"`
	CapacityUsec int64          `yaml:"capacity_usec"`
	DecisionLog  string         `yaml:"decision_log,omitempty"`
	Workloads    []WorkloadSpec `yaml:"workloads"`
}

// WorkloadSpec declares a single governed workload: a unique id, the CPU
// budget in microseconds per window, and the cgroup the workload lives in.
type WorkloadSpec struct {
	ID         string `yaml:"id"`
	BudgetUsec int64  `yaml:"budget_usec"`
	Cgroup     string `yaml:"cgroup,omitempty"`
}

// LoadGovernorSpec reads and strictly decodes a governor spec. Unknown keys
// are rejected rather than ignored.
func LoadGovernorSpec(path string) (*GovernorSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading governor spec: %w", err)
	}
	var spec GovernorSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing governor spec: %w", err)
	}
	if spec.WindowUsec == 0 {
		spec.WindowUsec = DefaultWindowUsec
	}
	return &spec, nil
}

// Validate checks the spec against the startup admission rules. A returned
// error is a ConfigError: the governor refuses to start.
func (s *GovernorSpec) Validate() error {
	if s.WindowUsec <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("window_usec must be positive, got %d", s.WindowUsec)}
	}
	if s.CapacityUsec <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("capacity_usec must be positive, got %d", s.CapacityUsec)}
	}
	if len(s.Workloads) == 0 {
		return &ConfigError{Reason: "at least one workload required"}
	}
	seen := make(map[string]bool, len(s.Workloads))
	budgets := make([]int64, 0, len(s.Workloads))
	for i, wl := range s.Workloads {
		prefix := fmt.Sprintf("workload[%d]", i)
		if wl.ID == "" {
			return &ConfigError{Reason: fmt.Sprintf("%s: id must be non-empty", prefix)}
		}
		if seen[wl.ID] {
			return &ConfigError{Reason: fmt.Sprintf("%s: duplicate workload id %q", prefix, wl.ID)}
		}
		seen[wl.ID] = true
		if wl.BudgetUsec < 0 {
			return &ConfigError{Reason: fmt.Sprintf("%s: budget_usec must be non-negative, got %d", prefix, wl.BudgetUsec)}
		}
		budgets = append(budgets, wl.BudgetUsec)
	}
	return CheckCapacity(budgets, s.CapacityUsec)
}
