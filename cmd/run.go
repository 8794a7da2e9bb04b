package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Nilax-Kundu/rgov/gov"
	"github.com/Nilax-Kundu/rgov/gov/cgroup"
	"github.com/Nilax-Kundu/rgov/gov/trace"
)

var (
	runConfigPath string // Governor spec YAML
	runMaxWindows int64  // Stop after this many windows (0 = run until signalled)
	runRestore    bool   // Re-apply full budgets on shutdown
)

// runCmd starts the live governor against the kernel adapters.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the governor against live cgroups",
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := gov.LoadGovernorSpec(runConfigPath)
		if err != nil {
			exitWithError(err)
		}
		if err := spec.Validate(); err != nil {
			exitWithError(err)
		}

		cgroups := make(map[string]string, len(spec.Workloads))
		for _, wl := range spec.Workloads {
			cgroups[wl.ID] = wl.Cgroup
		}
		observer := cgroup.NewObserver(cgroups)
		enforcer := cgroup.NewEnforcer(cgroups)

		orch, err := gov.NewOrchestrator(spec.WindowUsec, spec.CapacityUsec, observer, enforcer)
		if err != nil {
			exitWithError(err)
		}
		for _, wl := range spec.Workloads {
			if err := orch.Register(wl.ID, wl.BudgetUsec); err != nil {
				exitWithError(err)
			}
		}

		if spec.DecisionLog != "" {
			logWriter, err := trace.OpenWriter(spec.DecisionLog)
			if err != nil {
				exitWithError(err)
			}
			defer logWriter.Close()
			orch.SetDecisionLog(logWriter)
		}

		if err := orch.Start(); err != nil {
			exitWithError(err)
		}

		logrus.Infof("governing %d workloads, window=%dus, capacity=%dus",
			len(spec.Workloads), spec.WindowUsec, spec.CapacityUsec)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		driver := &gov.Driver{Orch: orch, MaxWindows: runMaxWindows}
		runErr := driver.Run(ctx)

		if runRestore {
			orch.Restore()
		}
		if err := orch.Shutdown(); err != nil {
			logrus.Warnf("decision log flush failed: %v", err)
		}
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			exitWithError(runErr)
		}
		logrus.Infof("clean shutdown after %d windows (%d enforcement failures)",
			orch.WindowIndex(), orch.EnforcementFailures)
	},
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to governor spec YAML (required)")
	runCmd.Flags().Int64Var(&runMaxWindows, "max-windows", 0, "Stop after this many windows (0 = run until signalled)")
	runCmd.Flags().BoolVar(&runRestore, "restore", true, "Re-apply full declared budgets on shutdown")
	_ = runCmd.MarkFlagRequired("config")
}
