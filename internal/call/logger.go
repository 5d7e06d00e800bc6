package call

import (
	pionLogging "github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

type leveledLogrusLogger struct {
	logrus.FieldLogger
}

func (ll *leveledLogrusLogger) Trace(msg string) {}

func (ll *leveledLogrusLogger) Tracef(format string, args ...interface{}) {}

func (ll *leveledLogrusLogger) Debug(msg string) {
	ll.FieldLogger.Debug(msg)
}

func (ll *leveledLogrusLogger) Info(msg string) {
	ll.FieldLogger.Info(msg)
}

func (ll *leveledLogrusLogger) Warn(msg string) {
	ll.FieldLogger.Warn(msg)
}

func (ll *leveledLogrusLogger) Error(msg string) {
	ll.FieldLogger.Error(msg)
}

type loggerFactory struct {
	logger logrus.FieldLogger
}

// NewLoggerFactory routes pion's internal logging into logger, tagging each
// entry with the pion scope.
func NewLoggerFactory(logger logrus.FieldLogger) pionLogging.LoggerFactory {
	return &loggerFactory{logger}
}

func (factory *loggerFactory) NewLogger(scope string) pionLogging.LeveledLogger {
	return &leveledLogrusLogger{factory.logger.WithField("webrtc", scope)}
}
