package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// build constructs a logrus-backed Logger from cfg.
func build(cfg *Config) (Logger, error) {
	l := logrus.New()
	l.SetFormatter(&patternFormatter{
		pattern: cfg.Pattern,
		time:    cfg.Time,
	})
	l.SetReportCaller(true)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	l.SetLevel(level)

	writers := []io.Writer{os.Stdout}
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file appender requires a path")
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}
	l.SetOutput(io.MultiWriter(writers...))

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

// newLogrusLogger builds a logger from cfg, falling back to a plain
// stderr logger rather than failing; package initialization must not
// be able to take the process down.
func newLogrusLogger(cfg *Config) Logger {
	l, err := build(cfg)
	if err != nil {
		fallback := logrus.New()
		fallback.SetOutput(os.Stderr)
		fl := &logrusAdapter{entry: logrus.NewEntry(fallback)}
		fl.WithError(err).Error("logger setup failed, using stderr fallback")
		return fl
	}
	return l
}

type logrusAdapter struct {
	entry *logrus.Entry
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

// patternFormatter renders entries through a pattern supporting %time,
// %level, %field, %msg, %caller, and %n.
type patternFormatter struct {
	pattern string
	time    string
}

func (f *patternFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	out := f.pattern
	out = strings.Replace(out, "%time", entry.Time.Format(f.time), 1)
	out = strings.Replace(out, "%level", entry.Level.String(), 1)
	out = strings.Replace(out, "%field", joinFields(entry), 1)
	out = strings.Replace(out, "%caller", callerOf(entry), 1)
	out = strings.Replace(out, "%msg", entry.Message, 1)
	out = strings.Replace(out, "%n", "\n", 1)
	return []byte(out), nil
}

func callerOf(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	file := entry.Caller.File
	if idx := strings.LastIndex(file, "/"); idx != -1 && idx+1 < len(file) {
		file = file[idx+1:]
	}
	return fmt.Sprintf("%s:%d", file, entry.Caller.Line)
}

func joinFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	fields := make([]string, 0, len(entry.Data))
	for key, val := range entry.Data {
		fields = append(fields, key+"="+fmt.Sprint(val))
	}
	return strings.Join(fields, ",")
}
