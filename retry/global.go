package retry

import (
	"log/slog"
	"sync"
)

var (
	globalMu   sync.Mutex
	globalExec *Executor
)

// DefaultExecutor returns the shared, lazily-initialized executor. It uses
// New() with no options unless SetGlobal has been called.
//
// Initialization opens the default failure log; a failure is returned and
// retried on the next call.
func DefaultExecutor() (*Executor, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalExec != nil {
		return globalExec, nil
	}
	exec, err := New()
	if err != nil {
		return nil, err
	}
	globalExec = exec
	return globalExec, nil
}

// SetGlobal configures the default executor. It must be called before
// DefaultExecutor is used; later calls log a warning and do nothing.
func SetGlobal(exec *Executor) {
	if exec == nil {
		return
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	if globalExec != nil {
		slog.Warn("retry: SetGlobal called after global executor already initialized; ignoring")
		return
	}
	globalExec = exec
}
