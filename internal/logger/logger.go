// Package logger provides leveled logging for nodectl.
// Messages go to stderr through logrus; --verbose lowers the level to debug
// and --log-level selects any other level.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return l
}

// SetVerbose switches between debug and info level.
func SetVerbose(v bool) {
	if v {
		log.SetLevel(logrus.DebugLevel)
		return
	}
	log.SetLevel(logrus.InfoLevel)
}

// IsVerbose returns true if debug messages are emitted.
func IsVerbose() bool {
	return log.IsLevelEnabled(logrus.DebugLevel)
}

// SetLevel parses a level name (debug, info, warn, error).
func SetLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

// SetOutput sets the output writer. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// With returns an entry carrying the given fields.
func With(fields map[string]any) *logrus.Entry {
	return log.WithFields(logrus.Fields(fields))
}

func Debug(format string, args ...any) { log.Debugf(format, args...) }

func Info(format string, args ...any) { log.Infof(format, args...) }

func Warn(format string, args ...any) { log.Warnf(format, args...) }

func Error(format string, args ...any) { log.Errorf(format, args...) }
