package crypto

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// keyLogger tags every crypto log line with the package and calling function.
type keyLogger struct {
	entry *logrus.Entry
}

// newLogger returns a logger for the named function.
func newLogger(function string) *keyLogger {
	return &keyLogger{
		entry: logrus.WithFields(logrus.Fields{
			"function": function,
			"package":  "crypto",
		}),
	}
}

// WithField returns a logger with key set.
func (l *keyLogger) WithField(key string, value interface{}) *keyLogger {
	return &keyLogger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a logger with every field in fields set.
func (l *keyLogger) WithFields(fields logrus.Fields) *keyLogger {
	return &keyLogger{entry: l.entry.WithFields(fields)}
}

// WithError records err and the operation that produced it.
func (l *keyLogger) WithError(err error, operation string) *keyLogger {
	return l.WithFields(logrus.Fields{
		"error":     err.Error(),
		"operation": operation,
	})
}

func (l *keyLogger) Debug(message string) { l.entry.Debug(message) }
func (l *keyLogger) Info(message string)  { l.entry.Info(message) }
func (l *keyLogger) Warn(message string)  { l.entry.Warn(message) }
func (l *keyLogger) Error(message string) { l.entry.Error(message) }

// SecureFieldHash returns log fields describing key material without
// revealing it: the first four bytes in hex and the total length.
func SecureFieldHash(data []byte, name string) logrus.Fields {
	preview := "nil"
	switch {
	case len(data) > 4:
		preview = fmt.Sprintf("%x...", data[:4])
	case len(data) > 0:
		preview = fmt.Sprintf("%x", data)
	}

	return logrus.Fields{
		name + "_preview": preview,
		name + "_size":    len(data),
	}
}
