package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// logrus resolves entry.Caller before hooks run, so with the Log and Entry
// wrappers it always reports a frame inside this package. callerHook walks
// the stack again and repoints the caller at the first frame that belongs to
// neither logrus nor the wrappers.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *callerHook) Fire(entry *logrus.Entry) error {
	var pcs [24]uintptr
	n := runtime.Callers(4, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !insideLogging(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func insideLogging(fn string) bool {
	return strings.Contains(fn, "sirupsen/logrus") ||
		strings.Contains(fn, "bybitconn/logger")
}
