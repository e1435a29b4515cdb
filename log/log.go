// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log is a thin facade over logrus offering the same
// default-logger/contextual-field shape as a hand-rolled level logger,
// backed by a real structured-logging library instead (§7 "Logging is
// pluggable and must be non-blocking").
package log

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger wraps a *logrus.Entry so With* calls accumulate fields without
// mutating a shared logger.
type Logger struct {
	entry *logrus.Entry
}

var (
	mu     sync.RWMutex
	defLog *Logger
)

func init() {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(logrus.InfoLevel)
	defLog = &Logger{entry: logrus.NewEntry(base)}
}

// Default returns the process-wide logger.
func Default() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defLog
}

// SetDefault replaces the process-wide logger, e.g. once cmd/fibre has
// parsed its log level/format configuration.
func SetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defLog = l
}

// New builds a Logger writing JSON or text lines to out at level.
func New(out io.Writer, level logrus.Level, jsonFormat bool) *Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(level)
	if jsonFormat {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &Logger{entry: logrus.NewEntry(base)}
}

// WithConnection scopes subsequent log lines to one connection, mirroring
// how a per-connection object (§4.2) would tag its own diagnostics.
func (l *Logger) WithConnection(id string) *Logger {
	return &Logger{entry: l.entry.WithField("connection", id)}
}

// WithCall scopes subsequent log lines to one in-flight call (§4.6).
func (l *Logger) WithCall(callID [16]byte) *Logger {
	return &Logger{entry: l.entry.WithField("call", formatCallID(callID))}
}

// WithNode scopes subsequent log lines to one peer node (§3).
func (l *Logger) WithNode(id [16]byte) *Logger {
	return &Logger{entry: l.entry.WithField("node", formatCallID(id))}
}

func formatCallID(id [16]byte) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 32)
	for i, b := range id {
		buf[i*2] = hex[b>>4]
		buf[i*2+1] = hex[b&0xf]
	}
	return string(buf)
}

func (l *Logger) Debug(msg string, args ...any) { l.entry.Debugf(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.entry.Infof(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.entry.Warnf(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.entry.Errorf(msg, args...) }

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
