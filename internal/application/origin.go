// ABOUTME: Locates the file and line an error or panic came from for error payloads
// ABOUTME: Skips runtime and error-wrapping frames so the first application frame is reported

package application

import (
	stderrors "errors"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// errorOrigin finds where err was created, using the innermost stack trace
// recorded by github.com/pkg/errors.
func errorOrigin(err error) (string, int, bool) {
	var innermost stackTracer
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			innermost = st
		}
	}
	if innermost == nil {
		return "", 0, false
	}

	trace := innermost.StackTrace()
	if len(trace) == 0 {
		return "", 0, false
	}
	pc := uintptr(trace[0]) - 1
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "", 0, false
	}
	file, line := fn.FileLine(pc)
	return file, line, true
}

// panicOrigin must be called from a deferred function while panicking. It
// returns the first frame below runtime.gopanic that is not runtime code.
func panicOrigin() (string, int, bool) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	panicking := false
	for {
		frame, more := frames.Next()
		if panicking && !isRuntimeFrame(frame.Function) {
			return frame.File, frame.Line, true
		}
		if frame.Function == "runtime.gopanic" {
			panicking = true
		}
		if !more {
			return "", 0, false
		}
	}
}

func isRuntimeFrame(function string) bool {
	return strings.HasPrefix(function, "runtime.") || strings.HasPrefix(function, "internal/runtime/")
}
