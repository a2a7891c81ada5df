// Package ops provides the structured logging the detect engine and its
// surrounding tooling publish through: a thin logrus-backed wrapper kept
// between calling code and the underlying publisher.
package ops

import (
	log "github.com/sirupsen/logrus"
)

// Logger is a thin, chainable wrapper over a logrus entry. It exists so
// detect.Engine depends on a small interface rather than logrus directly.
type Logger struct {
	entry *log.Entry
}

// New returns a Logger rooted at logrus' standard logger.
func New() *Logger {
	return &Logger{entry: log.NewEntry(log.StandardLogger())}
}

// NewWithEntry wraps an already-configured logrus entry (e.g. one carrying
// a "shard" or "flow" field set once per term).
func NewWithEntry(entry *log.Entry) *Logger { return &Logger{entry: entry} }

// With returns a child Logger with an additional structured field.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
