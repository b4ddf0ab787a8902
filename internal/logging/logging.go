// Package logging builds the logrus logger shared by all components.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	root   *logrus.Logger
	rootMu sync.Mutex
)

// Root returns the process wide logger, creating it on first use.
func Root() *logrus.Logger {
	rootMu.Lock()
	defer rootMu.Unlock()

	if root == nil {
		root = build(os.Stderr, logrus.InfoLevel)
	}
	return root
}

func build(out io.Writer, level logrus.Level) *logrus.Logger {
	return &logrus.Logger{
		Formatter: &logrus.TextFormatter{FullTimestamp: true},
		Level:     level,
		Out:       out,
		Hooks:     make(logrus.LevelHooks),
	}
}

// SetLevel parses a level name such as "debug" and applies it to the root logger.
func SetLevel(name string) error {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	Root().SetLevel(level)
	return nil
}

// SetOutput redirects the root logger.
func SetOutput(w io.Writer) {
	Root().SetOutput(w)
}

// Component returns a child logger tagged with the component name.
func Component(name string) *logrus.Entry {
	return Root().WithField("component", name)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Entry {
	return logrus.NewEntry(build(io.Discard, logrus.PanicLevel))
}
