package filestruct

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Giulio2002/filestruct/mmap"
)

// Option configures a File at Open time.
type Option func(*fileOptions)

type fileOptions struct {
	logger logrus.FieldLogger
	advice mmap.Advice
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		logger: DefaultLogger(),
		advice: mmap.AdviceNone,
	}
}

// WithLogger sets the sink for diagnostics about the file and its chunks.
// A nil logger discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *fileOptions) {
		if l == nil {
			l = discardLogger()
		}
		o.logger = l
	}
}

// WithAdvice sets the access pattern hint applied to every direct mapping.
func WithAdvice(a mmap.Advice) Option {
	return func(o *fileOptions) {
		o.advice = a
	}
}

var defaultLogger atomic.Pointer[logrus.FieldLogger]

func init() {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	SetDefaultLogger(l)
}

// DefaultLogger returns the logger used by files opened without WithLogger.
func DefaultLogger() logrus.FieldLogger {
	return *defaultLogger.Load()
}

// SetDefaultLogger replaces the logger used by files opened without
// WithLogger. A nil logger discards everything.
func SetDefaultLogger(l logrus.FieldLogger) {
	if l == nil {
		l = discardLogger()
	}
	defaultLogger.Store(&l)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
