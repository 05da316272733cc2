package vfs

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Debugf writes debug level output for this package, attributed to o when
// it is non-nil.
func Debugf(o any, format string, a ...any) {
	logWith(o).Debugf(format, a...)
}

// Logf writes log level output for this package.
func Logf(o any, format string, a ...any) {
	logWith(o).Infof(format, a...)
}

// Errorf writes error level output for this package.
func Errorf(o any, format string, a ...any) {
	logWith(o).Errorf(format, a...)
}

func logWith(o any) logrus.FieldLogger {
	if o == nil {
		return logrus.StandardLogger()
	}
	return logrus.WithField("object", fmt.Sprintf("%v", o))
}
