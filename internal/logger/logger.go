package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var levels = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

type Logger struct {
	mu     sync.Mutex
	level  int
	prefix string
	out    *log.Logger
}

func New(level string) *Logger {
	return NewWithWriter(level, os.Stderr)
}

func NewWithWriter(level string, w io.Writer) *Logger {
	lvl, ok := levels[level]
	if !ok {
		lvl = levels["info"]
	}
	return &Logger{
		level: lvl,
		out:   log.New(w, "", log.LstdFlags),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return NewWithWriter("error", io.Discard)
}

// WithPrefix returns a logger sharing the output and level, tagging every line.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		level:  l.level,
		prefix: l.prefix + "[" + prefix + "] ",
		out:    l.out,
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.logf(levels["debug"], "[DEBUG] ", msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.logf(levels["info"], "[INFO] ", msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.logf(levels["warn"], "[WARN] ", msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.logf(levels["error"], "[ERROR] ", msg, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.logf(levels["error"], "[FATAL] ", msg, args...)
	os.Exit(1)
}

func (l *Logger) logf(level int, tag, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Print(tag + l.prefix + fmt.Sprintf(msg, args...))
}
