// Package logx is the leveled, structured logger used across the client.
//
// It mirrors the call surface of the teacher repo's pkg/logger (Debug,
// Info, Warn, Error, Success; the teacher's Section has no counterpart
// here) but backs it with logrus so that
// fields like phase, tick or remote attach as structured data instead of
// being sprintf'd into the message.
package logx

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the minimum level processed by the default logger.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	base.SetLevel(lvl)
}

// Fields is a structured key/value bag attached to a log line.
type Fields = logrus.Fields

// Logger is a namespaced view over the shared base logger.
type Logger struct {
	entry *logrus.Entry
}

// Named returns a Logger that tags every line with component=name.
func Named(name string) *Logger {
	return &Logger{entry: base.WithField("component", name)}
}

// With returns a derived Logger carrying the extra structured fields.
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) Debug(msg string, fields Fields) { logEntry(l.entry, logrus.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields Fields)  { logEntry(l.entry, logrus.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields Fields)  { logEntry(l.entry, logrus.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, err error, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logEntry(l.entry, logrus.ErrorLevel, msg, fields)
}

// Success logs at Info level with a success=true marker, matching the
// teacher's distinct "Success" severity used for happy-path milestones.
func (l *Logger) Success(msg string, fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	fields["success"] = true
	logEntry(l.entry, logrus.InfoLevel, msg, fields)
}

func logEntry(entry *logrus.Entry, level logrus.Level, msg string, fields Fields) {
	if fields == nil {
		entry.Log(level, msg)
		return
	}
	entry.WithFields(fields).Log(level, msg)
}
