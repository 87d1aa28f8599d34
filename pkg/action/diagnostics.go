package action

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/action_layer/pkg/logger"
)

// Diagnostic describes an unexpected action failure.
type Diagnostic struct {
	Action  string
	Message string
	Stack   string
	Input   any
}

// DiagnosticLogger records unexpected failures.
type DiagnosticLogger interface {
	LogFailure(ctx context.Context, d Diagnostic)
}

// LogDiagnostics writes diagnostics as error level log entries.
type LogDiagnostics struct {
	log *logger.Logger
}

// NewLogDiagnostics returns a DiagnosticLogger backed by log.
func NewLogDiagnostics(log *logger.Logger) *LogDiagnostics {
	if log == nil {
		log = logger.NewDefault("actions")
	}
	return &LogDiagnostics{log: log}
}

func (l *LogDiagnostics) LogFailure(ctx context.Context, d Diagnostic) {
	l.log.WithContext(ctx).WithFields(logrus.Fields{
		"action": d.Action,
		"error":  d.Message,
		"trace":  d.Stack,
		"data":   d.Input,
	}).Error("Error in " + d.Action)
}
