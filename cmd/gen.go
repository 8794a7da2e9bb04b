package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Nilax-Kundu/rgov/gov"
	"github.com/Nilax-Kundu/rgov/gov/replay"
	"github.com/Nilax-Kundu/rgov/gov/trace"
	"github.com/Nilax-Kundu/rgov/gov/workload"
)

var (
	genPattern    string // Observation pattern name
	genBudget     int64  // Budget the pattern is scaled against
	genWindows    int    // Number of windows to generate
	genSeed       int64  // Seed for the noise pattern
	genWorkloadID string // Workload id stamped on every line
	genOutPath    string // Output path ("-" = stdout)
	genSpecOut    string // Optional companion governor spec for replaying the trace
)

// genCmd emits synthetic observation traces in the replay input format.
var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a synthetic observation trace",
	Run: func(cmd *cobra.Command, args []string) {
		usages, err := workload.Generate(genPattern, genBudget, genWindows, genSeed)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		obs := workload.ToObservations(genWorkloadID, usages)

		out := os.Stdout
		if genOutPath != "-" {
			f, err := os.Create(genOutPath)
			if err != nil {
				logrus.Fatalf("cannot create %s: %v", genOutPath, err)
			}
			defer f.Close()
			out = f
		}
		if err := trace.WriteObservations(out, obs); err != nil {
			logrus.Fatalf("%v", err)
		}

		if genSpecOut != "" {
			input := replay.Input{
				WindowUsec:   gov.DefaultWindowUsec,
				CapacityUsec: genBudget * 4,
				Workloads:    []gov.WorkloadSpec{{ID: genWorkloadID, BudgetUsec: genBudget}},
			}
			body, err := replay.MarshalInput(input)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			if err := os.WriteFile(genSpecOut, body, 0644); err != nil {
				logrus.Fatalf("cannot write %s: %v", genSpecOut, err)
			}
		}
	},
}

func init() {
	genCmd.Flags().StringVar(&genPattern, "pattern", "noise", "Pattern (overshoot, alternating, zero, exact, accumulate, oscillation, noise)")
	genCmd.Flags().Int64Var(&genBudget, "budget", 100_000, "Budget in microseconds the pattern scales against")
	genCmd.Flags().IntVar(&genWindows, "windows", 100, "Number of windows (pattern cycles for alternating/oscillation)")
	genCmd.Flags().Int64Var(&genSeed, "seed", 42, "Seed for the noise pattern")
	genCmd.Flags().StringVar(&genWorkloadID, "workload", "wl-0", "Workload id stamped on generated lines")
	genCmd.Flags().StringVar(&genOutPath, "out", "-", "Output path for the trace")
	genCmd.Flags().StringVar(&genSpecOut, "spec-out", "", "Also write a matching governor spec for replay")
}
