package livekit

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	packageLogger atomic.Pointer[zap.Logger]
	nopLogger     = zap.NewNop()
)

// Logger returns the package logger used by trampolines that cannot be tied to
// a client. It is a no-op logger unless SetLogger was called.
func Logger() *zap.Logger {
	if l := packageLogger.Load(); l != nil {
		return l
	}
	return nopLogger
}

// SetLogger replaces the package logger. Clients created without WithLogger
// log through it as well.
func SetLogger(l *zap.Logger) {
	packageLogger.Store(l)
}

// contractViolations counts trampoline invocations that broke the native
// calling contract, such as a one-shot callback firing twice.
var contractViolations atomic.Uint64

// reportContractViolation records and logs a contract violation. It never
// panics: trampolines run on native threads with nothing to recover them.
func reportContractViolation(log *zap.Logger, msg string, ctx uintptr) {
	contractViolations.Add(1)
	log.Error(msg, zap.Uintptr("context", ctx))
}
