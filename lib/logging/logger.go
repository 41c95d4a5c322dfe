package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sirupsen/logrus"
)

// Packages lists every logger name used in dSettings. InitLoggers applies the
// configured level to each of them.
var Packages = []string{
	"settings",
	"persist",
	"store",
	"rpc",
	"transport/rpc",
	"cmd",
}

var (
	sinkMu sync.Mutex
	sink   = newSink(os.Stdout)
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboat's logger.ILogger)
// --------------------------------------------------------------------------

// settingsLogger forwards the dragonboat logger facade to a shared logrus
// logger. Every package logger carries its own level and a "pkg" field.
type settingsLogger struct {
	mu    sync.RWMutex
	level logger.LogLevel
	entry *logrus.Entry
}

func (l *settingsLogger) SetLevel(level logger.LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *settingsLogger) enabled(level logger.LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level >= level
}

func (l *settingsLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.entry.Debugf(format, args...)
	}
}

func (l *settingsLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.entry.Infof(format, args...)
	}
}

func (l *settingsLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.entry.Warnf(format, args...)
	}
}

func (l *settingsLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.entry.Errorf(format, args...)
	}
}

func (l *settingsLogger) Panicf(format string, args ...interface{}) {
	l.entry.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

func newSink(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// CreateLogger implements logger.Factory. The returned logger writes through
// the shared logrus sink.
func CreateLogger(pkgName string) logger.ILogger {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	return &settingsLogger{
		level: logger.INFO,
		entry: sink.WithField("pkg", pkgName),
	}
}

// SetOutput redirects every logger created afterwards. InitLoggers recreates
// the package loggers, so call it before InitLoggers.
func SetOutput(w io.Writer) {
	sinkMu.Lock()
	sink = newSink(w)
	sinkMu.Unlock()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the logrus backed factory and sets the level of all
// known package loggers.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, pkg := range Packages {
		logger.GetLogger(pkg).SetLevel(lvl)
	}
	return nil
}
