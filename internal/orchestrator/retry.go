package orchestrator

import (
	"errors"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region constants

const maxRetries = 2 // max 2 retries = 3 total attempts

// #endregion

// #region should-retry

// shouldRetry reports whether a failed commit is worth another attempt.
// attempts counts the attempts made so far, including the one that failed.
// Only a stale parent is retried: the cycle reloads the active snapshot and
// recomputes on top of it.
func shouldRetry(err error, attempts int) bool {
	if err == nil {
		return false
	}
	// Max retries reached
	if attempts > maxRetries {
		return false
	}
	return errors.Is(err, state.ErrStaleParent)
}

// #endregion
