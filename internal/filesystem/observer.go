package filesystem

import "sync/atomic"

// Observer records filesystem retry metrics. The implementation lives in the
// metrics package, which imports this one.
type Observer interface {
	// retryOp is the retried operation: "stat", "open" or "readdir".
	ObserveRetryAttempt(retryOp string)
	ObserveRetrySuccess(retryOp string)
	ObserveRetryFailure(retryOp string)
	ObserveRetryDuration(retryOp string, durationSeconds float64)
	ObserveStaleError(retryOp string)
}

type observerHolder struct{ Observer }

var defaultObserver atomic.Pointer[observerHolder]

// SetObserver sets the package-level metrics observer. A nil observer
// disables recording.
func SetObserver(o Observer) {
	if o == nil {
		defaultObserver.Store(nil)
		return
	}
	defaultObserver.Store(&observerHolder{o})
}

// observe returns the current observer, or nil when none is set.
func observe() Observer {
	h := defaultObserver.Load()
	if h == nil {
		return nil
	}
	return h.Observer
}
