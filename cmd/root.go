package cmd

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Nilax-Kundu/rgov/gov"
)

var logLevel string // Log verbosity level (operational log only; never the decision log)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "rgov",
	Short: "Deterministic user-space CPU resource governor",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Exit codes, one per error class. A per-window EnforcementError never
// exits: it is logged and the same quota is re-applied next window. An
// enforcement failure during startup aborts with exitOther.
const (
	exitConfig      = 2
	exitObservation = 3
	exitInvariant   = 4
	exitOverflow    = 5
	exitOther       = 1
)

// exitWithError emits the machine-readable failure reason as the final log
// entry and exits with the class-specific code.
func exitWithError(err error) {
	var (
		configErr   *gov.ConfigError
		obsErr      *gov.ObservationError
		invErr      *gov.InvariantViolation
		overflowErr *gov.OverflowError
	)
	code := exitOther
	class := "error"
	switch {
	case errors.As(err, &configErr):
		code, class = exitConfig, "ConfigError"
	case errors.As(err, &obsErr):
		code, class = exitObservation, "ObservationError"
	case errors.As(err, &invErr):
		code, class = exitInvariant, "InvariantViolation"
	case errors.As(err, &overflowErr):
		code, class = exitOverflow, "OverflowError"
	}
	logrus.WithField("error_class", class).Error(err.Error())
	os.Exit(code)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up shared CLI flags and attaches subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(genCmd)
}
