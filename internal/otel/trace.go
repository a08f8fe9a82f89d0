package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled is read on every countdown tick, so it is an atomic rather
// than a plain bool guarded by a mutex.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("EVENTFEED_TRACE") != "")
}

// TraceEnabled reports whether EVENTFEED_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTraceEnabled overrides the EVENTFEED_TRACE setting, e.g. from a -trace flag.
func SetTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
