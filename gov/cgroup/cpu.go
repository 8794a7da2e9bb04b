// Package cgroup implements the kernel-facing adapters for cgroup v2: the
// cumulative usage counter in cpu.stat and the quota/period knob in cpu.max.
// No other control knob is touched.
package cgroup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadUsage reads the cumulative CPU time consumed by a cgroup, in
// microseconds, from the usage_usec field of cpu.stat. The counter is
// monotonically non-decreasing for the lifetime of the cgroup.
func ReadUsage(cgroupPath string) (int64, error) {
	statPath := filepath.Join(cgroupPath, "cpu.stat")
	f, err := os.Open(statPath)
	if err != nil {
		return 0, fmt.Errorf("cannot read cpu.stat: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry := scanner.Text()
		if !strings.HasPrefix(entry, "usage_usec") {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(entry, "usage_usec")), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse cpu.stat: %s: %w", entry, err)
		}
		return v, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("cannot read cpu.stat: %w", err)
	}
	return 0, fmt.Errorf("cpu.stat in %s did not contain usage_usec", cgroupPath)
}

// WriteQuota writes "<quota> <period>" to cpu.max. Both values are
// non-negative microseconds; the "max" sentinel (unlimited) is never written.
func WriteQuota(cgroupPath string, quotaUsec, periodUsec int64) error {
	if quotaUsec < 0 {
		return fmt.Errorf("negative quota %d", quotaUsec)
	}
	if periodUsec <= 0 {
		return fmt.Errorf("non-positive period %d", periodUsec)
	}
	maxPath := filepath.Join(cgroupPath, "cpu.max")
	value := strconv.FormatInt(quotaUsec, 10) + " " + strconv.FormatInt(periodUsec, 10)
	if err := os.WriteFile(maxPath, []byte(value), 0644); err != nil {
		return fmt.Errorf("cannot write cpu.max: %w", err)
	}
	return nil
}
