// Package logging provides the engine's structured logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger configured the way every engine component
// expects to receive one: text formatter, explicit level, explicit output.
func New(level string, output io.Writer) *logrus.Logger {
	log := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	if output == nil {
		output = os.Stderr
	}
	log.SetOutput(output)

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return log
}

// For returns an entry scoped to a component name, the unit every
// constructor in this module injects instead of a bare *logrus.Logger.
func For(log *logrus.Logger, component string) *logrus.Entry {
	return log.WithField("component", component)
}
