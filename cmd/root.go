// Package cmd holds what the command line programs share.
package cmd

import (
	"os"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCommand provides the commandline parser root for a program.
func NewRootCommand(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
			os.Exit(2)
		},
	}
}

// NewLogger creates a text logger writing to stderr at the named level.
func NewLogger(disableTimestamp bool, logLevel string) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: disableTimestamp,
		FullTimestamp:    true,
	})
	return logger, nil
}

// ConfigureDeadlockDetector switches the lock order checks of every
// deadlock mutex on or off. They are off unless enabled.
func ConfigureDeadlockDetector(enabled bool, logger logrus.FieldLogger) {
	deadlock.Opts.Disable = !enabled
	deadlock.Opts.DeadlockTimeout = 15 * time.Second
	if enabled {
		logger.Warnln("enabled automatic deadlock detector")
	}
}
