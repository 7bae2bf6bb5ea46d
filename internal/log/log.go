// Package log provides the process-wide logger used by the rule parser
// and the detect engine build.
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

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var (
	once   sync.Once
	logger Logger
)

// GetLogger returns the global logger. Init must have been called first;
// before that a default stderr logger is handed out.
func GetLogger() Logger {
	if logger == nil {
		Init(&Config{Level: "info", Pattern: defaultPattern, Time: defaultTimeLayout})
	}
	return logger
}

func Init(cfg *Config) {
	once.Do(func() {
		if err := initByConfig(cfg); err != nil {
			panic(err)
		}
	})
}
