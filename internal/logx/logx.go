// Package logx is the ambient logger for the core engine packages: a thin,
// allocation-free-when-disabled wrapper over the standard log package, in
// the style of internal/debug (a package-level enable flag, a
// mutex-guarded writer, leveled helpers that format lazily).
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	enabled = false
	out     io.Writer = os.Stderr
	logger            = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

// SetEnabled turns verbose engine logging on or off. Disabled is the
// default so a cold `wv build` on a clean cache stays quiet.
func SetEnabled(v bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = v
}

// SetOutput redirects log output, primarily for tests that want to capture
// or silence it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	logger = log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Debugf logs a debug-level line when engine logging is enabled. The
// message is never formatted when disabled.
func Debugf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	logger.Output(2, "[debug] "+fmt.Sprintf(format, args...))
}

// Infof always logs; used for build lifecycle events a user running without
// -v still wants to see (cache load warnings, checkpoint writes).
func Infof(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	logger.Output(2, "[info] "+fmt.Sprintf(format, args...))
}

// Warnf always logs at warn level.
func Warnf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	logger.Output(2, "[warn] "+fmt.Sprintf(format, args...))
}
