package cmd

import (
	"testing"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(true, "debug")
	if err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %s", logger.GetLevel())
	}
	if _, err := NewLogger(false, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestConfigureDeadlockDetector(t *testing.T) {
	disabled := deadlock.Opts.Disable
	t.Cleanup(func() { deadlock.Opts.Disable = disabled })

	logger, hook := test.NewNullLogger()

	ConfigureDeadlockDetector(false, logger)
	if !deadlock.Opts.Disable {
		t.Fatal("detector enabled")
	}
	if len(hook.Entries) != 0 {
		t.Fatalf("unexpected log %q", hook.LastEntry().Message)
	}

	ConfigureDeadlockDetector(true, logger)
	if deadlock.Opts.Disable {
		t.Fatal("detector disabled")
	}
	if hook.LastEntry() == nil || hook.LastEntry().Level != logrus.WarnLevel {
		t.Fatal("expected a warning when enabling the detector")
	}
}
