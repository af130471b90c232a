// Package log provides the process-wide logging facade backed by logrus.
package log

import (
	"sync"
)

type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var (
	mu     sync.Mutex
	logger Logger
)

// GetLogger returns the process logger. Before Init it returns a console
// logger at info level so library code and tests can log unconditionally.
func GetLogger() Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newAdapter(DefaultConfig())
	}
	return logger
}

// Init configures the process logger. The first logger installed wins:
// once Init has run, or GetLogger has installed the console default, later
// calls are no-ops that return nil.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		return nil
	}
	l, err := newAdapterChecked(cfg)
	if err != nil {
		return err
	}
	logger = l
	return nil
}
