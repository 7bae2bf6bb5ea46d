package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	defaultPattern    = "%time [%level] %msg %field\n"
	defaultTimeLayout = "2006-01-02 15:04:05.000"
)

// Config controls the global logger.
type Config struct {
	Level     string           `mapstructure:"level"`
	Pattern   string           `mapstructure:"pattern"`
	Time      string           `mapstructure:"time"`
	Appenders []AppenderConfig `mapstructure:"appenders"`
}

// AppenderConfig selects one output: type "console" or "file", with
// type-specific options decoded per appender.
type AppenderConfig struct {
	Type    string                 `mapstructure:"type"`
	Options map[string]interface{} `mapstructure:"options"`
}

type logrusAdapter struct {
	entry *logrus.Entry
}

func initByConfig(cfg *Config) error {
	l := logrus.New()

	pattern := cfg.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	timeLayout := cfg.Time
	if timeLayout == "" {
		timeLayout = defaultTimeLayout
	}
	l.SetFormatter(&formatter{
		pattern: pattern,
		time:    timeLayout,
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	mw := NewMultiWriter()
	for _, app := range cfg.Appenders {
		switch app.Type {
		case "console", "stdout":
			mw.Add(os.Stdout)
		case "file":
			opt, err := DecodeFileAppenderOpt(app.Options)
			if err != nil {
				return err
			}
			mw.AddFileAppender(*opt)
		default:
			return fmt.Errorf("log: unknown appender type %q", app.Type)
		}
	}
	if len(mw.writers) == 0 {
		mw.Add(os.Stderr)
	}
	l.SetOutput(mw)

	logger = &logrusAdapter{
		entry: logrus.NewEntry(l),
	}
	return nil
}

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
