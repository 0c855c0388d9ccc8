package logger

import (
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"
)

// Cron adapts the logger to robfig/cron. Scheduler chatter goes to debug,
// recovered panics and errors stay at error level.
func (l *Logger) Cron() cron.Logger {
	return cronLogger{l}
}

type cronLogger struct {
	l *Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// Badger adapts the logger to badger. Badger is chatty at info level, so its
// info and debug lines are demoted to debug.
func (l *Logger) Badger() badger.Logger {
	return badgerLogger{l}
}

type badgerLogger struct {
	l *Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Errorf("badger: "+strings.TrimSpace(f), v...)
}

func (b badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warnf("badger: "+strings.TrimSpace(f), v...)
}

func (b badgerLogger) Infof(f string, v ...interface{}) {
	b.l.Debugf("badger: "+strings.TrimSpace(f), v...)
}

func (b badgerLogger) Debugf(f string, v ...interface{}) {
	b.l.Debugf("badger: "+strings.TrimSpace(f), v...)
}
