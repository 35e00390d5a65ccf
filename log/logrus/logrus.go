// Package logrus adapts a *logrus.Entry to analysiscache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	ac "github.com/unkn0wn-root/analysiscache"
)

var _ ac.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l; component, when set, is attached to every line.
func New(l *logrus.Logger, component string) Logger {
	e := logrus.NewEntry(l)
	if component != "" {
		e = e.WithField("component", component)
	}
	return Logger{E: e}
}

func (l Logger) Debug(msg string, f ac.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f ac.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f ac.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f ac.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f ac.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			continue
		}
		out[k] = v
	}
	return e.WithFields(out)
}
